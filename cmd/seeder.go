package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/frahmantamala/payment-orchestrator/internal/auth"
	authpostgres "github.com/frahmantamala/payment-orchestrator/internal/auth/postgres"
	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	gatewaypostgres "github.com/frahmantamala/payment-orchestrator/internal/gateway/postgres"
	"github.com/frahmantamala/payment-orchestrator/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/datatypes"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed a sandbox tenant with its payment methods and gateways for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := initGorm(sqlDB)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		ctx := context.Background()
		tenants := authpostgres.NewTenantRepository(db).(*authpostgres.TenantRepository)
		gateways := gatewaypostgres.NewGatewayRepository(db).(*gatewaypostgres.GatewayRepository)

		const tenantName = "acme"

		if clearData {
			fmt.Println("Clearing existing sandbox data...")
			tables := []string{"failed_ipns", "incoming_ipns", "payment_status_history", "payments", "items", "payment_orders", "buyers", "gateway_methods", "gateways", "payment_methods", "tenants"}
			for _, table := range tables {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
		}

		if existing, err := tenants.GetTenantByName(ctx, tenantName); err == nil {
			fmt.Printf("tenant %s already exists (id %d); run with --clear to reseed\n", existing.Name, existing.ID)
			return
		}

		apiKey, err := auth.GenerateRandomToken()
		if err != nil {
			log.Fatalf("failed to generate api key: %v", err)
		}
		hash, err := auth.NewService(tenants, cfg.Security.BCryptCost, logger.LoggerWrapper()).HashAPIKey(apiKey)
		if err != nil {
			log.Fatalf("failed to hash api key: %v", err)
		}

		t := &tenant.Tenant{
			Name:       tenantName,
			APIKeyHash: hash,
			IpnURL:     "http://localhost:9000/notifications",
			Active:     true,
		}
		methods := []*tenant.PaymentMethod{
			{Type: tenant.MethodOneCreditCard, AutoCapture: true, Enabled: true},
			{Type: tenant.MethodCreditCards, AutoCapture: false, Enabled: true},
			{Type: tenant.MethodTicket, AutoCapture: true, Enabled: true},
		}
		if err := tenants.Create(ctx, t, methods); err != nil {
			log.Fatalf("failed to insert tenant %s: %v", tenantName, err)
		}
		fmt.Printf("Seeded tenant %s (id %d)\n", t.Name, t.ID)

		sandbox := []struct {
			kind    gateway.Kind
			name    string
			config  string
			methods []*gatewaymodel.GatewayMethod
		}{
			{
				kind:   gateway.KindCybersource,
				name:   "Cybersource sandbox",
				config: `{"endpoint":"https://ics2wstest.ic3.com/commerce/1.x/transactionProcessor","merchant_id":"acme_sandbox","transaction_key":"change-me"}`,
				methods: []*gatewaymodel.GatewayMethod{
					{PaymentType: payment.TypeCreditCard, Enabled: true, MaxRetries: 1},
				},
			},
			{
				kind:   gateway.KindMercadoPago,
				name:   "MercadoPago sandbox",
				config: `{"base_url":"https://api.mercadopago.com","access_token":"TEST-change-me"}`,
				methods: []*gatewaymodel.GatewayMethod{
					{PaymentType: payment.TypeCreditCard, Enabled: true},
				},
			},
			{
				kind:   gateway.KindTicket,
				name:   "Ticket sandbox",
				config: `{"base_url":"http://localhost:9100","api_key":"change-me","days_to_expire":3}`,
				methods: []*gatewaymodel.GatewayMethod{
					{PaymentType: payment.TypeTicket, Enabled: true, SyncNotify: true},
				},
			},
		}

		for _, s := range sandbox {
			gw := &gatewaymodel.Gateway{
				TenantID: t.ID,
				Type:     string(s.kind),
				Name:     s.name,
				Config:   datatypes.JSON(s.config),
			}
			if err := gateways.CreateGateway(ctx, gw, s.methods); err != nil {
				log.Fatalf("failed to insert gateway %s: %v", s.kind, err)
			}
			fmt.Printf("Seeded gateway: %s (id %d, %d methods)\n", s.kind, gw.ID, len(s.methods))
		}

		fmt.Println("Sandbox data seeded successfully")
		fmt.Printf("API key for tenant %s (shown once): %s\n", tenantName, apiKey)
	},
}
