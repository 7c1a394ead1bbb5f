package sqlite

import (
	"context"
	"errors"

	"github.com/thijsken/gmsnederland/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

// DispatchRepository is the sqlite-backed tenant store. Every query is
// filtered on owner_id; the owner column is the isolation boundary.
type DispatchRepository struct {
	db *gorm.DB
}

func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{})
}

func NewDispatchRepository(db *gorm.DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func (r *DispatchRepository) UpsertAPIKey(ctx context.Context, value domain.APIKey) (domain.APIKey, error) {
	m := APIKeyModel{OwnerID: value.OwnerID, ServerID: value.ServerID, KeyHash: value.KeyHash}
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", value.OwnerID).
		Assign(map[string]any{"key_hash": value.KeyHash, "server_id": value.ServerID}).
		FirstOrCreate(&m).Error
	if err != nil {
		return domain.APIKey{}, err
	}
	return domain.APIKey{ID: m.ID, OwnerID: m.OwnerID, ServerID: m.ServerID, KeyHash: m.KeyHash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}, nil
}

func (r *DispatchRepository) GetAPIKeyByHash(ctx context.Context, keyHash string) (domain.APIKey, error) {
	var m APIKeyModel
	if err := r.db.WithContext(ctx).Where("key_hash = ?", keyHash).First(&m).Error; err != nil {
		return domain.APIKey{}, translate(err)
	}
	return domain.APIKey{ID: m.ID, OwnerID: m.OwnerID, ServerID: m.ServerID, KeyHash: m.KeyHash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}, nil
}

func (r *DispatchRepository) CreateOperator(ctx context.Context, value domain.Operator) (domain.Operator, error) {
	m := OperatorModel{Email: value.Email, PasswordHash: value.PasswordHash, OwnerID: value.OwnerID}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Operator{}, err
	}
	return domain.Operator{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, OwnerID: m.OwnerID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}, nil
}

func (r *DispatchRepository) CountOperators(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&OperatorModel{}).Count(&count).Error
	return count, err
}

func (r *DispatchRepository) GetOperatorByEmail(ctx context.Context, email string) (domain.Operator, error) {
	var m OperatorModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		return domain.Operator{}, translate(err)
	}
	return domain.Operator{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, OwnerID: m.OwnerID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}, nil
}

func (r *DispatchRepository) CreateOperatorToken(ctx context.Context, value domain.OperatorToken) (domain.OperatorToken, error) {
	m := OperatorTokenModel{OperatorID: value.OperatorID, OwnerID: value.OwnerID, Name: value.Name, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.OperatorToken{}, err
	}
	return domain.OperatorToken{ID: m.ID, OperatorID: m.OperatorID, OwnerID: m.OwnerID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *DispatchRepository) GetOperatorTokenByHash(ctx context.Context, tokenHash string) (domain.OperatorToken, error) {
	var m OperatorTokenModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.OperatorToken{}, translate(err)
	}
	return domain.OperatorToken{ID: m.ID, OperatorID: m.OperatorID, OwnerID: m.OwnerID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *DispatchRepository) CreateMelding(ctx context.Context, value domain.Melding) (domain.Melding, error) {
	m := MeldingModel{
		OwnerID:     value.OwnerID,
		Type:        value.Type,
		Location:    value.Location,
		PlayerName:  value.PlayerName,
		Description: value.Description,
		Coordinates: value.Coordinates,
		Timestamp:   value.Timestamp,
		Status:      value.Status,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Melding{}, err
	}
	return meldingFromModel(m), nil
}

func (r *DispatchRepository) ListMeldingen(ctx context.Context, ownerID string, limit int) ([]domain.Melding, error) {
	rows := make([]MeldingModel, 0)
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.Melding, 0, len(rows))
	for _, m := range rows {
		result = append(result, meldingFromModel(m))
	}
	return result, nil
}

func (r *DispatchRepository) GetMeldingByID(ctx context.Context, ownerID string, id uint) (domain.Melding, error) {
	var m MeldingModel
	if err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&m).Error; err != nil {
		return domain.Melding{}, translate(err)
	}
	return meldingFromModel(m), nil
}

func (r *DispatchRepository) UpdateMeldingStatus(ctx context.Context, ownerID string, id uint, status string) (domain.Melding, error) {
	res := r.db.WithContext(ctx).
		Model(&MeldingModel{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("status", status)
	if res.Error != nil {
		return domain.Melding{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Melding{}, domain.ErrNotFound
	}
	return r.GetMeldingByID(ctx, ownerID, id)
}

func (r *DispatchRepository) MeldingExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&MeldingModel{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *DispatchRepository) UpsertUnit(ctx context.Context, value domain.Unit) (domain.Unit, error) {
	m := UnitModel{OwnerID: value.OwnerID, UnitID: value.UnitID, Type: value.Type, Location: value.Location}
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND unit_id = ?", value.OwnerID, value.UnitID).
		Assign(map[string]any{"type": value.Type, "location": value.Location}).
		FirstOrCreate(&m).Error
	if err != nil {
		return domain.Unit{}, err
	}
	return domain.Unit{ID: m.ID, OwnerID: m.OwnerID, UnitID: m.UnitID, Type: m.Type, Location: m.Location, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}, nil
}

func (r *DispatchRepository) ListUnits(ctx context.Context, ownerID string) ([]domain.Unit, error) {
	rows := make([]UnitModel, 0)
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("unit_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Unit, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.Unit{ID: m.ID, OwnerID: m.OwnerID, UnitID: m.UnitID, Type: m.Type, Location: m.Location, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt})
	}
	return result, nil
}

func (r *DispatchRepository) CreateAmberAlert(ctx context.Context, value domain.AmberAlert) (domain.AmberAlert, error) {
	m := AmberAlertModel{OwnerID: value.OwnerID, Name: value.Name, Location: value.Location, Description: value.Description, Timestamp: value.Timestamp}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AmberAlert{}, err
	}
	return domain.AmberAlert{ID: m.ID, OwnerID: m.OwnerID, Name: m.Name, Location: m.Location, Description: m.Description, Timestamp: m.Timestamp, CreatedAt: m.CreatedAt}, nil
}

func (r *DispatchRepository) ListAmberAlerts(ctx context.Context, ownerID string) ([]domain.AmberAlert, error) {
	rows := make([]AmberAlertModel, 0)
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.AmberAlert, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.AmberAlert{ID: m.ID, OwnerID: m.OwnerID, Name: m.Name, Location: m.Location, Description: m.Description, Timestamp: m.Timestamp, CreatedAt: m.CreatedAt})
	}
	return result, nil
}

func (r *DispatchRepository) CreateNLAlert(ctx context.Context, value domain.NLAlert) (domain.NLAlert, error) {
	m := NLAlertModel{OwnerID: value.OwnerID, Title: value.Title, Message: value.Message, Location: value.Location, Timestamp: value.Timestamp}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.NLAlert{}, err
	}
	return domain.NLAlert{ID: m.ID, OwnerID: m.OwnerID, Title: m.Title, Message: m.Message, Location: m.Location, Timestamp: m.Timestamp, CreatedAt: m.CreatedAt}, nil
}

func (r *DispatchRepository) ListNLAlerts(ctx context.Context, ownerID string) ([]domain.NLAlert, error) {
	rows := make([]NLAlertModel, 0)
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.NLAlert, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.NLAlert{ID: m.ID, OwnerID: m.OwnerID, Title: m.Title, Message: m.Message, Location: m.Location, Timestamp: m.Timestamp, CreatedAt: m.CreatedAt})
	}
	return result, nil
}

func meldingFromModel(m MeldingModel) domain.Melding {
	return domain.Melding{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Type:        m.Type,
		Location:    m.Location,
		PlayerName:  m.PlayerName,
		Description: m.Description,
		Coordinates: m.Coordinates,
		Timestamp:   m.Timestamp,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
