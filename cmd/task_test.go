package cmd

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("parseTaskArgs", func() {
	It("stores integers as int64 and keeps the rest as strings", func() {
		args, err := parseTaskArgs([]string{"payment_order_id=42", "client_reference=ORD-1_0_0"})
		Expect(err).ToNot(HaveOccurred())
		Expect(args).To(HaveKeyWithValue("payment_order_id", int64(42)))
		Expect(args).To(HaveKeyWithValue("client_reference", "ORD-1_0_0"))
	})

	It("keeps everything after the first equals sign", func() {
		args, err := parseTaskArgs([]string{"request_id=a=b"})
		Expect(err).ToNot(HaveOccurred())
		Expect(args).To(HaveKeyWithValue("request_id", "a=b"))
	})

	It("rejects pairs without a key", func() {
		_, err := parseTaskArgs([]string{"=1"})
		Expect(err).To(HaveOccurred())

		_, err = parseTaskArgs([]string{"novalue"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("loadConfig", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("reads config.yml from the given directory", func() {
		yml := `
env: development
http_server:
  port: 9090
  read_header_timeout: 5s
  read_timeout: 15s
database:
  source: postgres://localhost/payments
  max_open_conns: 10
  max_idle_conns: 5
security:
  notification_signing_key: 0123456789abcdef0123456789abcdef
  bcrypt_cost: 10
tasks:
  driver: local
  retry_backoff: 3s
`
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o600)).To(Succeed())

		cfg, err := loadConfig(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(9090))
		Expect(cfg.Database.Source).To(Equal("postgres://localhost/payments"))
		Expect(cfg.Tasks.Driver).To(Equal("local"))
		Expect(cfg.Tasks.RetryBackoff.Seconds()).To(BeNumerically("==", 3))
	})

	It("rejects a short signing key", func() {
		yml := `
security:
  notification_signing_key: short
tasks:
  driver: local
`
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o600)).To(Succeed())

		_, err := loadConfig(dir)
		Expect(err).To(MatchError(ContainSubstring("signing key")))
	})
})
