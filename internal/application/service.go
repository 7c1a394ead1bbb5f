package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/thijsken/gmsnederland/internal/domain"
	"github.com/thijsken/gmsnederland/internal/mailbox"
	"golang.org/x/crypto/bcrypt"
)

const defaultMeldingLimit = 200

// DispatchService implements the dispatch backend: credential resolution,
// melding lifecycle, unit registry, broadcast alerts and the command
// mailboxes polled by the game server.
type DispatchService struct {
	repo      domain.DispatchRepository
	box       *mailbox.Box
	watchlist map[string]struct{}

	clockMu sync.Mutex
	lastTS  int64
}

func NewDispatchService(repo domain.DispatchRepository, box *mailbox.Box, anprWatchlist []string) *DispatchService {
	watch := make(map[string]struct{}, len(anprWatchlist))
	for _, plate := range anprWatchlist {
		plate = strings.ToUpper(strings.TrimSpace(plate))
		if plate == "" {
			continue
		}
		watch[plate] = struct{}{}
	}
	return &DispatchService{repo: repo, box: mailboxOrNew(box), watchlist: watch}
}

func mailboxOrNew(box *mailbox.Box) *mailbox.Box {
	if box == nil {
		return mailbox.New()
	}
	return box
}

// now returns a unix-millisecond timestamp that never decreases within this
// process, even if the wall clock steps backwards.
func (s *DispatchService) now() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	ts := time.Now().UnixMilli()
	if ts < s.lastTS {
		ts = s.lastTS
	}
	s.lastTS = ts
	return ts
}

// GenerateAPIKey issues a fresh key for the owner and returns the plain
// value exactly once. An existing key for the same owner is overwritten,
// which invalidates it.
func (s *DispatchService) GenerateAPIKey(ctx context.Context, ownerID, serverID string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", domain.Invalid("ownerId is verplicht")
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return "", err
	}
	_, err = s.repo.UpsertAPIKey(ctx, domain.APIKey{
		OwnerID:  ownerID,
		ServerID: strings.TrimSpace(serverID),
		KeyHash:  hash,
	})
	if err != nil {
		return "", err
	}
	return plain, nil
}

// ResolveAPIKey maps a raw x-api-key value to its owner id.
func (s *DispatchService) ResolveAPIKey(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", domain.ErrMissingCredential
	}
	record, err := s.repo.GetAPIKeyByHash(ctx, hashToken(key))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInvalidCredential
		}
		return "", err
	}
	return record.OwnerID, nil
}

// BootstrapOperator creates the initial dashboard account when the operator
// table is empty. Later starts are a no-op.
func (s *DispatchService) BootstrapOperator(ctx context.Context, email, password, ownerID string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" || strings.TrimSpace(ownerID) == "" {
		return errors.New("bootstrap operator email, password and owner id are required")
	}
	count, err := s.repo.CountOperators(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err = s.CreateOperator(ctx, email, password, ownerID)
	return err
}

func (s *DispatchService) CreateOperator(ctx context.Context, email, password, ownerID string) (domain.Operator, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	ownerID = strings.TrimSpace(ownerID)
	if email == "" || strings.TrimSpace(password) == "" || ownerID == "" {
		return domain.Operator{}, domain.Invalid("email, password en ownerId zijn verplicht")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Operator{}, err
	}
	return s.repo.CreateOperator(ctx, domain.Operator{Email: email, PasswordHash: string(hash), OwnerID: ownerID})
}

// LoginOperator verifies the password and issues a bearer token whose sha256
// hash is stored alongside the operator's owner identity.
func (s *DispatchService) LoginOperator(ctx context.Context, email, password, tokenName string, ttl time.Duration) (string, error) {
	op, err := s.repo.GetOperatorByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInvalidCredential
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", domain.ErrInvalidCredential
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return "", err
	}
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().UTC().Add(ttl)
		expiresAt = &t
	}
	_, err = s.repo.CreateOperatorToken(ctx, domain.OperatorToken{
		OperatorID: op.ID,
		OwnerID:    op.OwnerID,
		Name:       defaultString(tokenName, "dashboard"),
		TokenHash:  hash,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return "", err
	}
	return plain, nil
}

// ResolveBearerToken maps a bearer token to its owner id.
func (s *DispatchService) ResolveBearerToken(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", domain.ErrMissingCredential
	}
	record, err := s.repo.GetOperatorTokenByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInvalidCredential
		}
		return "", err
	}
	if record.ExpiresAt != nil && record.ExpiresAt.Before(time.Now().UTC()) {
		return "", domain.ErrInvalidCredential
	}
	return record.OwnerID, nil
}

type MeldingInput struct {
	Type        string              `json:"type"`
	Location    string              `json:"location"`
	PlayerName  string              `json:"playerName"`
	Description string              `json:"description"`
	Coordinates *domain.Coordinates `json:"coordinates"`
}

// SubmitMelding validates and persists a new incident report. Timestamp,
// status and owner are assigned here; client-supplied values for those
// fields are ignored.
func (s *DispatchService) SubmitMelding(ctx context.Context, ownerID string, in MeldingInput) (domain.Melding, error) {
	if strings.TrimSpace(in.Type) == "" || strings.TrimSpace(in.Location) == "" || strings.TrimSpace(in.PlayerName) == "" {
		return domain.Melding{}, domain.Invalid("ongeldige melding: type, location en playerName zijn verplicht")
	}
	return s.repo.CreateMelding(ctx, domain.Melding{
		OwnerID:     ownerID,
		Type:        strings.TrimSpace(in.Type),
		Location:    strings.TrimSpace(in.Location),
		PlayerName:  strings.TrimSpace(in.PlayerName),
		Description: strings.TrimSpace(in.Description),
		Coordinates: in.Coordinates,
		Timestamp:   s.now(),
		Status:      domain.StatusNew,
	})
}

func (s *DispatchService) ListMeldingen(ctx context.Context, ownerID string) ([]domain.Melding, error) {
	return s.repo.ListMeldingen(ctx, ownerID, defaultMeldingLimit)
}

// SetMeldingStatus moves a report to any of the known statuses. A melding
// that exists under a different owner yields ErrForbidden, an absent one
// ErrNotFound.
func (s *DispatchService) SetMeldingStatus(ctx context.Context, ownerID string, id uint, status string) (domain.Melding, error) {
	if !domain.ValidStatus(status) {
		return domain.Melding{}, domain.Invalid("ongeldige status")
	}

	if _, err := s.repo.GetMeldingByID(ctx, ownerID, id); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Melding{}, err
		}
		exists, probeErr := s.repo.MeldingExists(ctx, id)
		if probeErr != nil {
			return domain.Melding{}, probeErr
		}
		if exists {
			return domain.Melding{}, domain.ErrForbidden
		}
		return domain.Melding{}, domain.ErrNotFound
	}

	return s.repo.UpdateMeldingStatus(ctx, ownerID, id, status)
}

type UnitInput struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Location string `json:"location"`
}

// UpsertUnit inserts or replaces the unit with the given client-supplied id
// under the caller's owner. Last write wins.
func (s *DispatchService) UpsertUnit(ctx context.Context, ownerID string, in UnitInput) (domain.Unit, error) {
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.Type) == "" || strings.TrimSpace(in.Location) == "" {
		return domain.Unit{}, domain.Invalid("ongeldige eenheid: id, type en location zijn verplicht")
	}
	return s.repo.UpsertUnit(ctx, domain.Unit{
		OwnerID:  ownerID,
		UnitID:   strings.TrimSpace(in.ID),
		Type:     strings.TrimSpace(in.Type),
		Location: strings.TrimSpace(in.Location),
	})
}

func (s *DispatchService) ListUnits(ctx context.Context, ownerID string) ([]domain.Unit, error) {
	return s.repo.ListUnits(ctx, ownerID)
}

func (s *DispatchService) CreateAmberAlert(ctx context.Context, ownerID, name, location, description string) (domain.AmberAlert, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(location) == "" || strings.TrimSpace(description) == "" {
		return domain.AmberAlert{}, domain.Invalid("ontbrekende velden voor amber alert")
	}
	return s.repo.CreateAmberAlert(ctx, domain.AmberAlert{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Location:    strings.TrimSpace(location),
		Description: strings.TrimSpace(description),
		Timestamp:   s.now(),
	})
}

func (s *DispatchService) ListAmberAlerts(ctx context.Context, ownerID string) ([]domain.AmberAlert, error) {
	return s.repo.ListAmberAlerts(ctx, ownerID)
}

func (s *DispatchService) CreateNLAlert(ctx context.Context, ownerID, title, message, location string) (domain.NLAlert, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(message) == "" || strings.TrimSpace(location) == "" {
		return domain.NLAlert{}, domain.Invalid("ontbrekende velden voor nl-alert")
	}
	return s.repo.CreateNLAlert(ctx, domain.NLAlert{
		OwnerID:   ownerID,
		Title:     strings.TrimSpace(title),
		Message:   strings.TrimSpace(message),
		Location:  strings.TrimSpace(location),
		Timestamp: s.now(),
	})
}

func (s *DispatchService) ListNLAlerts(ctx context.Context, ownerID string) ([]domain.NLAlert, error) {
	return s.repo.ListNLAlerts(ctx, ownerID)
}

// ScanPlate checks a license plate against the ANPR watchlist. A hit
// synthesizes a melding under the caller's owner; the returned bool reports
// whether the plate matched.
func (s *DispatchService) ScanPlate(ctx context.Context, ownerID, plate, location string) (domain.Melding, bool, error) {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	if plate == "" || strings.TrimSpace(location) == "" {
		return domain.Melding{}, false, domain.Invalid("plate of locatie ontbreekt")
	}
	if _, hit := s.watchlist[plate]; !hit {
		return domain.Melding{}, false, nil
	}

	melding, err := s.SubmitMelding(ctx, ownerID, MeldingInput{
		Type:        "Verdacht voertuig",
		Location:    location,
		PlayerName:  "ANPR Systeem",
		Description: fmt.Sprintf("ANPR hit op kenteken: %s", plate),
		Coordinates: &domain.Coordinates{X: 100, Y: 100},
	})
	if err != nil {
		return domain.Melding{}, false, err
	}
	return melding, true, nil
}

// PostSirenAction queues a siren command for the polling game server,
// replacing any unread prior command.
func (s *DispatchService) PostSirenAction(ownerID string, in domain.SirenAction) error {
	if strings.TrimSpace(in.Action) == "" || strings.TrimSpace(in.DeviceID) == "" {
		return domain.Invalid("action en deviceId zijn verplicht")
	}
	s.box.Post(ownerID, mailbox.ChannelSiren, in)
	return nil
}

// TakeSirenAction destructively reads the pending siren command, if any.
func (s *DispatchService) TakeSirenAction(ownerID string) (domain.SirenAction, bool) {
	payload, ok := s.box.Take(ownerID, mailbox.ChannelSiren)
	if !ok {
		return domain.SirenAction{}, false
	}
	action, ok := payload.(domain.SirenAction)
	return action, ok
}

func (s *DispatchService) PostPostAlarm(ownerID string, in domain.PostAlarm) error {
	if strings.TrimSpace(in.PostID) == "" || strings.TrimSpace(in.Trigger) == "" || strings.TrimSpace(in.Vehicle) == "" {
		return domain.Invalid("postId, trigger en vehicle zijn verplicht")
	}
	s.box.Post(ownerID, mailbox.ChannelPostAlarm, in)
	return nil
}

func (s *DispatchService) TakePostAlarm(ownerID string) (domain.PostAlarm, bool) {
	payload, ok := s.box.Take(ownerID, mailbox.ChannelPostAlarm)
	if !ok {
		return domain.PostAlarm{}, false
	}
	alarm, ok := payload.(domain.PostAlarm)
	return alarm, ok
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
