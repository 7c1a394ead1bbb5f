package application

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/thijsken/gmsnederland/internal/adapters/db/sqlite"
	"github.com/thijsken/gmsnederland/internal/domain"
	"github.com/thijsken/gmsnederland/internal/mailbox"
)

func newTestService(t *testing.T, watchlist []string) *DispatchService {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "gmsnederland_test.db")

	db, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqlite.RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewDispatchService(sqlite.NewDispatchRepository(db), mailbox.New(), watchlist)
}

func TestAPIKeyRoundTripAndRotation(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	key, err := service.GenerateAPIKey(ctx, "u42", "srv-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	owner, err := service.ResolveAPIKey(ctx, key)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if owner != "u42" {
		t.Fatalf("resolved wrong owner: %q", owner)
	}

	rotated, err := service.GenerateAPIKey(ctx, "u42", "srv-1")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := service.ResolveAPIKey(ctx, key); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("old key should be invalid after rotation, got %v", err)
	}
	if owner, err := service.ResolveAPIKey(ctx, rotated); err != nil || owner != "u42" {
		t.Fatalf("rotated key should resolve: %q, %v", owner, err)
	}

	if _, err := service.ResolveAPIKey(ctx, ""); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("empty key should report missing credential, got %v", err)
	}
	if _, err := service.ResolveAPIKey(ctx, "nonsense"); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("unknown key should report invalid credential, got %v", err)
	}
	if _, err := service.GenerateAPIKey(ctx, "  ", ""); !domain.IsValidation(err) {
		t.Fatalf("blank owner should be a validation error, got %v", err)
	}
}

func TestStoreOutageIsNotACredentialFailure(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "gmsnederland_test.db")

	db, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqlite.RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	service := NewDispatchService(sqlite.NewDispatchRepository(db), mailbox.New(), nil)

	key, err := service.GenerateAPIKey(ctx, "u42", "srv-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := service.BootstrapOperator(ctx, "meldkamer@example.test", "wachtwoord", "meldkamer"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	// a store failure must surface as such, not as a rejected credential
	if _, err := service.ResolveAPIKey(ctx, key); err == nil || errors.Is(err, domain.ErrInvalidCredential) || errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("resolve with broken store: got %v, want a store error", err)
	}
	if _, err := service.ResolveBearerToken(ctx, "een-token"); err == nil || errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("bearer resolve with broken store: got %v, want a store error", err)
	}
	if _, err := service.LoginOperator(ctx, "meldkamer@example.test", "wachtwoord", "cli", time.Hour); err == nil || errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("login with broken store: got %v, want a store error", err)
	}
}

func TestOperatorLoginIssuesResolvableToken(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	if err := service.BootstrapOperator(ctx, "meldkamer@example.test", "wachtwoord", "meldkamer"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	// second bootstrap is a no-op, not an error
	if err := service.BootstrapOperator(ctx, "ander@example.test", "x", "ander"); err != nil {
		t.Fatalf("repeat bootstrap: %v", err)
	}

	token, err := service.LoginOperator(ctx, "Meldkamer@Example.Test", "wachtwoord", "cli", time.Hour)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	owner, err := service.ResolveBearerToken(ctx, token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if owner != "meldkamer" {
		t.Fatalf("token resolves to wrong owner: %q", owner)
	}

	if _, err := service.LoginOperator(ctx, "meldkamer@example.test", "fout", "cli", time.Hour); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("wrong password should be rejected, got %v", err)
	}

	expired, err := service.LoginOperator(ctx, "meldkamer@example.test", "wachtwoord", "cli", -time.Minute)
	if err != nil {
		t.Fatalf("login with negative ttl: %v", err)
	}
	if _, err := service.ResolveBearerToken(ctx, expired); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expired token should be rejected, got %v", err)
	}
}

func TestSubmitMeldingValidatesAndStamps(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	if _, err := service.SubmitMelding(ctx, "u42", MeldingInput{Type: "Brand", Location: ""}); !domain.IsValidation(err) {
		t.Fatalf("missing location should be a validation error, got %v", err)
	}

	melding, err := service.SubmitMelding(ctx, "u42", MeldingInput{Type: "  Brand ", Location: "Hoofdstraat 1", PlayerName: "Jansen"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if melding.Status != domain.StatusNew {
		t.Fatalf("new melding should start as new, got %q", melding.Status)
	}
	if melding.Type != "Brand" {
		t.Fatalf("fields should be trimmed, got %q", melding.Type)
	}
	if melding.Timestamp == 0 {
		t.Fatalf("timestamp should be assigned server side")
	}

	second, err := service.SubmitMelding(ctx, "u42", MeldingInput{Type: "Inbraak", Location: "Kerkplein", PlayerName: "de Vries", Coordinates: &domain.Coordinates{X: 12.5, Y: -3, Z: 1}})
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}
	if second.Timestamp < melding.Timestamp {
		t.Fatalf("timestamps must not decrease: %d then %d", melding.Timestamp, second.Timestamp)
	}

	list, err := service.ListMeldingen(ctx, "u42")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, item := range list {
		switch item.ID {
		case melding.ID:
			if item.Coordinates != nil {
				t.Fatalf("absent coordinates should stay absent, got %+v", item.Coordinates)
			}
		case second.ID:
			if item.Coordinates == nil || item.Coordinates.X != 12.5 {
				t.Fatalf("coordinates should survive a round trip, got %+v", item.Coordinates)
			}
		}
	}
}

func TestSetMeldingStatusDistinguishesForbiddenFromAbsent(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	melding, err := service.SubmitMelding(ctx, "u42", MeldingInput{Type: "Brand", Location: "Hoofdstraat 1", PlayerName: "Jansen"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	updated, err := service.SetMeldingStatus(ctx, "u42", melding.ID, domain.StatusAccepted)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated.Status != domain.StatusAccepted {
		t.Fatalf("status not applied: %q", updated.Status)
	}

	// any listed status is reachable from any other, including regressions
	if _, err := service.SetMeldingStatus(ctx, "u42", melding.ID, domain.StatusNew); err != nil {
		t.Fatalf("regression to new should be allowed: %v", err)
	}

	if _, err := service.SetMeldingStatus(ctx, "u42", melding.ID, "afgehandeld"); !domain.IsValidation(err) {
		t.Fatalf("unknown status should be a validation error, got %v", err)
	}
	if _, err := service.SetMeldingStatus(ctx, "other-owner", melding.ID, domain.StatusClosed); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("another owner's melding should be forbidden, got %v", err)
	}
	if _, err := service.SetMeldingStatus(ctx, "u42", 9999, domain.StatusClosed); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("absent melding should be not found, got %v", err)
	}
}

func TestScanPlateWatchlist(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, []string{"xx-123-x"})

	_, hit, err := service.ScanPlate(ctx, "u42", "AB-456-C", "A2 Utrecht")
	if err != nil {
		t.Fatalf("scan miss: %v", err)
	}
	if hit {
		t.Fatalf("unlisted plate should not hit")
	}

	// matching is case-insensitive on both sides
	melding, hit, err := service.ScanPlate(ctx, "u42", "xx-123-X", "A2 Utrecht")
	if err != nil {
		t.Fatalf("scan hit: %v", err)
	}
	if !hit {
		t.Fatalf("watchlisted plate should hit")
	}
	if melding.Type != "Verdacht voertuig" || melding.PlayerName != "ANPR Systeem" {
		t.Fatalf("unexpected synthesized melding: %+v", melding)
	}

	list, err := service.ListMeldingen(ctx, "u42")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("only the hit should create a melding, got %d", len(list))
	}

	if _, _, err := service.ScanPlate(ctx, "u42", "", "A2"); !domain.IsValidation(err) {
		t.Fatalf("blank plate should be a validation error, got %v", err)
	}
}

func TestSirenMailboxDestructiveRead(t *testing.T) {
	service := newTestService(t, nil)

	if err := service.PostSirenAction("u42", domain.SirenAction{Action: "start", DeviceID: ""}); !domain.IsValidation(err) {
		t.Fatalf("missing deviceId should be a validation error, got %v", err)
	}
	if err := service.PostSirenAction("u42", domain.SirenAction{Action: "start", DeviceID: "siren-1"}); err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := service.PostSirenAction("u42", domain.SirenAction{Action: "stop", DeviceID: "siren-1"}); err != nil {
		t.Fatalf("post overwrite: %v", err)
	}

	action, ok := service.TakeSirenAction("u42")
	if !ok {
		t.Fatalf("expected a pending action")
	}
	if action.Action != "stop" {
		t.Fatalf("later post should win, got %q", action.Action)
	}
	if _, ok := service.TakeSirenAction("u42"); ok {
		t.Fatalf("slot should be empty after a take")
	}
	if _, ok := service.TakeSirenAction("other"); ok {
		t.Fatalf("other owners have their own slot")
	}
}

func TestPostAlarmMailbox(t *testing.T) {
	service := newTestService(t, nil)

	if err := service.PostPostAlarm("u42", domain.PostAlarm{PostID: "post-7", Trigger: ""}); !domain.IsValidation(err) {
		t.Fatalf("missing trigger should be a validation error, got %v", err)
	}
	alarm := domain.PostAlarm{PostID: "post-7", Trigger: "prio1", Vehicle: "TS-01", Address: "Hoofdstraat 1"}
	if err := service.PostPostAlarm("u42", alarm); err != nil {
		t.Fatalf("post: %v", err)
	}

	got, ok := service.TakePostAlarm("u42")
	if !ok {
		t.Fatalf("expected a pending alarm")
	}
	if got != alarm {
		t.Fatalf("alarm mangled in transit: %+v", got)
	}
	if _, ok := service.TakePostAlarm("u42"); ok {
		t.Fatalf("slot should be empty after a take")
	}
}

func TestAlertsAreOwnerScoped(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	if _, err := service.CreateAmberAlert(ctx, "u42", "Kind", "Hoofdstraat", "Vermist sinds 14:00"); err != nil {
		t.Fatalf("amber: %v", err)
	}
	if _, err := service.CreateNLAlert(ctx, "u42", "Grote brand", "Blijf binnen", "Industrieterrein"); err != nil {
		t.Fatalf("nl-alert: %v", err)
	}
	if _, err := service.CreateAmberAlert(ctx, "u42", "", "x", "y"); !domain.IsValidation(err) {
		t.Fatalf("blank name should be a validation error, got %v", err)
	}

	ambers, err := service.ListAmberAlerts(ctx, "other")
	if err != nil {
		t.Fatalf("list amber: %v", err)
	}
	if len(ambers) != 0 {
		t.Fatalf("other owner should see no amber alerts, got %d", len(ambers))
	}
	alerts, err := service.ListNLAlerts(ctx, "u42")
	if err != nil {
		t.Fatalf("list nl-alert: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Timestamp == 0 {
		t.Fatalf("nl-alert should be listed with a server timestamp, got %+v", alerts)
	}
}
