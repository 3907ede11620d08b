package cybersource

import "encoding/xml"

const (
	transactionNamespace = "urn:schemas-cybersource-com:transaction-data-1.155"
	soapNamespace        = "http://schemas.xmlsoap.org/soap/envelope/"
	wsseNamespace        = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	passwordTextType     = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
)

const (
	DecisionAccept = "ACCEPT"
	DecisionReview = "REVIEW"
	DecisionReject = "REJECT"
	DecisionError  = "ERROR"
)

type BillTo struct {
	FirstName   string `xml:"firstName,omitempty"`
	LastName    string `xml:"lastName,omitempty"`
	Street1     string `xml:"street1,omitempty"`
	City        string `xml:"city,omitempty"`
	State       string `xml:"state,omitempty"`
	PostalCode  string `xml:"postalCode,omitempty"`
	Country     string `xml:"country,omitempty"`
	PhoneNumber string `xml:"phoneNumber,omitempty"`
	Email       string `xml:"email,omitempty"`
	IPAddress   string `xml:"ipAddress,omitempty"`
	CustomerID  string `xml:"customerID,omitempty"`
}

type RequestItem struct {
	ID          int    `xml:"id,attr"`
	UnitPrice   string `xml:"unitPrice"`
	Quantity    int    `xml:"quantity"`
	ProductName string `xml:"productName,omitempty"`
	ProductSKU  string `xml:"productSKU,omitempty"`
}

type PurchaseTotals struct {
	Currency         string `xml:"currency"`
	GrandTotalAmount string `xml:"grandTotalAmount"`
}

type CardInfo struct {
	AccountNumber   string `xml:"accountNumber,omitempty"`
	ExpirationMonth string `xml:"expirationMonth,omitempty"`
	ExpirationYear  string `xml:"expirationYear,omitempty"`
	CvNumber        string `xml:"cvNumber,omitempty"`
	CardType        string `xml:"cardType,omitempty"`
}

type RecurringSubscriptionInfo struct {
	SubscriptionID string `xml:"subscriptionID"`
}

type Installment struct {
	TotalCount int `xml:"totalCount"`
}

type Service struct {
	Run string `xml:"run,attr"`
}

type DecisionManager struct {
	Enabled string `xml:"enabled"`
}

type CaptureService struct {
	Run           string `xml:"run,attr"`
	AuthRequestID string `xml:"authRequestID"`
}

type VoidService struct {
	Run           string `xml:"run,attr"`
	VoidRequestID string `xml:"voidRequestID"`
}

type CreditService struct {
	Run              string `xml:"run,attr"`
	CaptureRequestID string `xml:"captureRequestID"`
}

type AuthReversalService struct {
	Run           string `xml:"run,attr"`
	AuthRequestID string `xml:"authRequestID"`
}

type CaseManagementActionService struct {
	Run        string `xml:"run,attr"`
	ActionCode string `xml:"actionCode"`
	RequestID  string `xml:"requestID"`
	Comments   string `xml:"comments,omitempty"`
}

// RequestMessage is the body of a runTransaction call. Only the services with Run set execute.
type RequestMessage struct {
	XMLName                     xml.Name                     `xml:"requestMessage"`
	Xmlns                       string                       `xml:"xmlns,attr"`
	MerchantID                  string                       `xml:"merchantID"`
	MerchantReferenceCode       string                       `xml:"merchantReferenceCode"`
	BillTo                      *BillTo                      `xml:"billTo,omitempty"`
	Items                       []RequestItem                `xml:"item,omitempty"`
	PurchaseTotals              *PurchaseTotals              `xml:"purchaseTotals,omitempty"`
	Card                        *CardInfo                    `xml:"card,omitempty"`
	Subscription                *RecurringSubscriptionInfo   `xml:"recurringSubscriptionInfo,omitempty"`
	Installment                 *Installment                 `xml:"installment,omitempty"`
	AFSService                  *Service                     `xml:"afsService,omitempty"`
	AuthService                 *Service                     `xml:"ccAuthService,omitempty"`
	CaptureService              *CaptureService              `xml:"ccCaptureService,omitempty"`
	CreditService               *CreditService               `xml:"ccCreditService,omitempty"`
	AuthReversalService         *AuthReversalService         `xml:"ccAuthReversalService,omitempty"`
	VoidService                 *VoidService                 `xml:"voidService,omitempty"`
	CaseManagementActionService *CaseManagementActionService `xml:"caseManagementActionService,omitempty"`
	DecisionManager             *DecisionManager             `xml:"decisionManager,omitempty"`
	DeviceFingerprintID         string                       `xml:"deviceFingerprintID,omitempty"`
}

func running() *Service {
	return &Service{Run: "true"}
}

type AuthReply struct {
	ReasonCode        string `xml:"reasonCode"`
	Amount            string `xml:"amount"`
	AuthorizationCode string `xml:"authorizationCode"`
	AVSCode           string `xml:"avsCode"`
	CVCode            string `xml:"cvCode"`
	AuthorizedAt      string `xml:"authorizedDateTime"`
	ProcessorResponse string `xml:"processorResponse"`
}

type CaptureReply struct {
	ReasonCode      string `xml:"reasonCode"`
	RequestDateTime string `xml:"requestDateTime"`
	Amount          string `xml:"amount"`
}

type AFSReply struct {
	ReasonCode string `xml:"reasonCode"`
	AFSResult  string `xml:"afsResult"`
}

type DecisionReply struct {
	ActiveProfileReply struct {
		SelectedBy string `xml:"selectedBy"`
	} `xml:"activeProfileReply"`
}

// ReplyMessage is the union of replies a runTransaction call can return.
type ReplyMessage struct {
	MerchantReferenceCode string         `xml:"merchantReferenceCode"`
	RequestID             string         `xml:"requestID"`
	Decision              string         `xml:"decision"`
	ReasonCode            string         `xml:"reasonCode"`
	MissingFields         []string       `xml:"missingField"`
	InvalidFields         []string       `xml:"invalidField"`
	AuthReply             *AuthReply     `xml:"ccAuthReply"`
	CaptureReply          *CaptureReply  `xml:"ccCaptureReply"`
	CreditReply           *CaptureReply  `xml:"ccCreditReply"`
	VoidReply             *CaptureReply  `xml:"voidReply"`
	AuthReversalReply     *CaptureReply  `xml:"ccAuthReversalReply"`
	AFSReply              *AFSReply      `xml:"afsReply"`
	DecisionReply         *DecisionReply `xml:"decisionReply"`
}

func (r *ReplyMessage) Accepted() bool {
	return r != nil && r.Decision == DecisionAccept
}

type usernameToken struct {
	Username string `xml:"wsse:Username"`
	Password struct {
		Type  string `xml:"Type,attr"`
		Value string `xml:",chardata"`
	} `xml:"wsse:Password"`
}

type requestEnvelope struct {
	XMLName  xml.Name `xml:"soapenv:Envelope"`
	SoapNS   string   `xml:"xmlns:soapenv,attr"`
	Security struct {
		WsseNS        string        `xml:"xmlns:wsse,attr"`
		UsernameToken usernameToken `xml:"wsse:UsernameToken"`
	} `xml:"soapenv:Header>wsse:Security"`
	Body struct {
		Request *RequestMessage
	} `xml:"soapenv:Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type responseEnvelope struct {
	Body struct {
		Reply *ReplyMessage `xml:"replyMessage"`
		Fault *soapFault    `xml:"Fault"`
	} `xml:"Body"`
}
