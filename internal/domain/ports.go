package domain

import "context"

// DispatchRepository is the tenant store port. Every data-returning method
// takes the resolved owner id and must scope its query to it; a record whose
// stored owner differs is indistinguishable from an absent one at this layer.
type DispatchRepository interface {
	UpsertAPIKey(ctx context.Context, value APIKey) (APIKey, error)
	GetAPIKeyByHash(ctx context.Context, keyHash string) (APIKey, error)

	CreateOperator(ctx context.Context, value Operator) (Operator, error)
	CountOperators(ctx context.Context) (int64, error)
	GetOperatorByEmail(ctx context.Context, email string) (Operator, error)
	CreateOperatorToken(ctx context.Context, value OperatorToken) (OperatorToken, error)
	GetOperatorTokenByHash(ctx context.Context, tokenHash string) (OperatorToken, error)

	CreateMelding(ctx context.Context, value Melding) (Melding, error)
	ListMeldingen(ctx context.Context, ownerID string, limit int) ([]Melding, error)
	GetMeldingByID(ctx context.Context, ownerID string, id uint) (Melding, error)
	UpdateMeldingStatus(ctx context.Context, ownerID string, id uint, status string) (Melding, error)
	// MeldingExists reports whether a melding with the given id exists under
	// any owner. Only this existence bit crosses the tenant boundary; it is
	// what distinguishes a 403 from a 404 on a status update.
	MeldingExists(ctx context.Context, id uint) (bool, error)

	UpsertUnit(ctx context.Context, value Unit) (Unit, error)
	ListUnits(ctx context.Context, ownerID string) ([]Unit, error)

	CreateAmberAlert(ctx context.Context, value AmberAlert) (AmberAlert, error)
	ListAmberAlerts(ctx context.Context, ownerID string) ([]AmberAlert, error)
	CreateNLAlert(ctx context.Context, value NLAlert) (NLAlert, error)
	ListNLAlerts(ctx context.Context, ownerID string) ([]NLAlert, error)
}
