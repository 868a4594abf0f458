// Package campaign implements push-campaign lifecycle management.
//
// The service layer owns the status state machine (draft → review →
// approved → active → terminal states), the ramp plan generator, and
// daily-actuals reconciliation. It depends on the repository interface
// defined in this package and should never import from api/.
//
// Repository implementations live in repository/postgres/.
package campaign
