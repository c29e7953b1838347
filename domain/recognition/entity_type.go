// Package recognition provides the entity detection domain types: entity
// types, sensitivity tiers, and findings.
package recognition

import "strings"

// EntityType identifies the kind of PII an entity represents. The set is
// open (operators define entity types through pattern rules) but a few
// well-known names drive type-specific heuristics.
type EntityType string

// Well-known entity types.
const (
	EntityPerson      EntityType = "PERSON"
	EntityEmail       EntityType = "EMAIL_ADDRESS"
	EntityPhone       EntityType = "PHONE_NUMBER"
	EntityDateTime    EntityType = "DATE_TIME"
	EntityNationalID  EntityType = "NATIONAL_ID"
	EntityTaxID       EntityType = "TAX_ID"
	EntityFamilyID    EntityType = "FAMILY_CARD_ID"
	EntityInsuranceID EntityType = "INSURANCE_ID"
	EntityBankAccount EntityType = "BANK_ACCOUNT"
	EntityCreditCard  EntityType = "CREDIT_CARD"
	EntityAddress     EntityType = "ADDRESS"
	EntityServiceID   EntityType = "SERVICE_ID"
)

// String returns the string representation of the entity type.
func (e EntityType) String() string {
	return string(e)
}

// IsPersonLike reports whether person-name heuristics apply to this type.
func (e EntityType) IsPersonLike() bool {
	return e == EntityPerson || strings.HasSuffix(string(e), "_NAME")
}

// IsDateLike reports whether date/time heuristics apply to this type.
func (e EntityType) IsDateLike() bool {
	return e == EntityDateTime || strings.Contains(string(e), "DATE")
}

// IsPhoneLike reports whether phone-number heuristics apply to this type.
func (e EntityType) IsPhoneLike() bool {
	return strings.Contains(string(e), "PHONE")
}

// IsShortNumeric reports whether short-numeric-identifier heuristics
// (minimum length, exclude words) apply to this type.
func (e EntityType) IsShortNumeric() bool {
	return strings.HasSuffix(string(e), "_ID")
}

// IsContact reports whether the type is a contact identifier (email, phone).
func (e EntityType) IsContact() bool {
	return e == EntityEmail || e.IsPhoneLike()
}

// IsHighRisk reports whether the type is a government, financial, or
// credential identifier.
func (e EntityType) IsHighRisk() bool {
	switch e {
	case EntityNationalID, EntityTaxID, EntityFamilyID, EntityInsuranceID,
		EntityBankAccount, EntityCreditCard:
		return true
	}
	return strings.Contains(string(e), "CREDENTIAL") || strings.Contains(string(e), "PASSWORD")
}
