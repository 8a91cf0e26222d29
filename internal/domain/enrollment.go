package domain

// EnrollmentForm is the multi-section form completed after the quiz and payment.
type EnrollmentForm struct {
	Personal   PersonalDetails   `json:"personal"`
	Address    Address           `json:"address"`
	Emergency  EmergencyContact  `json:"emergency"`
	Education  EducationHistory  `json:"education"`
	Employment EmploymentDetails `json:"employment"`
	Diversity  LanguageDiversity `json:"diversity"`
	Disability DisabilityDetails `json:"disability"`
	USI        string            `json:"usi" validate:"usi"`
	Consent    Consent           `json:"consent"`
}

type PersonalDetails struct {
	Title       string `json:"title"`
	GivenNames  string `json:"givenNames" validate:"notblank"`
	Surname     string `json:"surname" validate:"notblank"`
	DateOfBirth string `json:"dateOfBirth" validate:"isodate,minage=15"` // YYYY-MM-DD
	Gender      string `json:"gender"`
	Email       string `json:"email" validate:"email"`
	Mobile      string `json:"mobile" validate:"notblank"`
}

type Address struct {
	Street   string `json:"street" validate:"notblank"`
	Suburb   string `json:"suburb" validate:"notblank"`
	State    string `json:"state" validate:"austate"`
	Postcode string `json:"postcode" validate:"number,len=4"`
}

type EmergencyContact struct {
	Name         string `json:"name" validate:"notblank"`
	Relationship string `json:"relationship" validate:"notblank"`
	Phone        string `json:"phone" validate:"notblank"`
}

type EducationHistory struct {
	HighestSchoolLevel  string   `json:"highestSchoolLevel" validate:"notblank"`
	YearCompleted       string   `json:"yearCompleted"`
	StillAtSchool       bool     `json:"stillAtSchool"`
	PriorQualifications []string `json:"priorQualifications,omitempty"`
}

type EmploymentDetails struct {
	Status      string `json:"status" validate:"notblank"`
	StudyReason string `json:"studyReason"`
}

type LanguageDiversity struct {
	CountryOfBirth     string `json:"countryOfBirth" validate:"notblank"`
	LanguageAtHome     string `json:"languageAtHome" validate:"notblank"`
	EnglishProficiency string `json:"englishProficiency,omitempty"`
	IndigenousStatus   string `json:"indigenousStatus" validate:"notblank"`
}

type DisabilityDetails struct {
	HasDisability bool     `json:"hasDisability"`
	Types         []string `json:"types,omitempty"`
	SupportNeeds  string   `json:"supportNeeds,omitempty"`
}

type Consent struct {
	PrivacyNotice   bool   `json:"privacyNotice" validate:"required"`
	StudentHandbook bool   `json:"studentHandbook" validate:"required"`
	Signature       string `json:"signature" validate:"notblank"`
	SignedOn        string `json:"signedOn" validate:"isodate"` // YYYY-MM-DD
}

// CourseSelection is the course and intake date chosen in the wizard.
type CourseSelection struct {
	CourseID     string  `json:"courseId" validate:"notblank"`
	CourseName   string  `json:"courseName,omitempty"`
	CourseDateID string  `json:"courseDateId" validate:"notblank"`
	StartDate    string  `json:"startDate,omitempty"`
	Fee          float64 `json:"fee"`
}

// PaymentMethod is how the course fee is settled.
type PaymentMethod string

const (
	PaymentCard  PaymentMethod = "card"
	PaymentProof PaymentMethod = "proof"
)

// PaymentRecord is the metadata kept after a payment step; no card number or CVV.
type PaymentRecord struct {
	Method        PaymentMethod `json:"method"`
	Amount        float64       `json:"amount"`
	TransactionID string        `json:"transactionId,omitempty"`
	CardBrand     string        `json:"cardBrand,omitempty"`
	CardLastFour  string        `json:"cardLastFour,omitempty"`
	ReceiptRef    string        `json:"receiptRef,omitempty"`
	Status        string        `json:"status,omitempty"`
}
