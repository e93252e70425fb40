package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aisgo/gorm-behaviors/blameable"
	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/repository"

	"github.com/gofiber/fiber/v3"
	ulidv2 "github.com/oklog/ulid/v2"
)

var now = time.Unix(1700000000, 0)

func signed(t *testing.T, actor *Actor) ActorHeaders {
	t.Helper()
	h, err := NewSigner(SignerConfig{
		Issuer:  "gateway",
		Secret:  "secret",
		NowFunc: func() time.Time { return now },
	}).Sign(actor)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return h
}

func verifier(required bool, at time.Time) *Verifier {
	return NewVerifier(VerifierConfig{
		Secrets:  map[string]string{"gateway": "secret"},
		MaxAge:   10 * time.Second,
		Required: required,
		NowFunc:  func() time.Time { return at },
	}, nil)
}

func TestSignAndVerify(t *testing.T) {
	h := signed(t, &Actor{UserID: "u1", Username: "alice", Roles: []string{"editor"}})

	actor, err := verifier(false, now.Add(5*time.Second)).Verify(h)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if actor.Name() != "alice" || actor.Roles[0] != "editor" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestVerifyRejects(t *testing.T) {
	h := signed(t, &Actor{UserID: "u1"})

	tampered := h
	tampered.Actor = h.Actor + "x"

	unknown := h
	unknown.Issuer = "other"

	cases := map[string]struct {
		headers ActorHeaders
		at      time.Time
	}{
		"tampered": {tampered, now},
		"issuer":   {unknown, now},
		"expired":  {h, now.Add(11 * time.Second)},
		"future":   {h, now.Add(-time.Minute)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := verifier(false, tc.at).Verify(tc.headers)
			if errors.Code(err) != errors.ErrCodeUnauthenticated {
				t.Fatalf("expected unauthenticated, got %v", err)
			}
		})
	}
}

func TestSignRequiresIdentity(t *testing.T) {
	_, err := NewSigner(SignerConfig{Issuer: "gateway", Secret: "secret"}).Sign(&Actor{})
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func newApp(v *Verifier) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(nil)})
	app.Use(v.Handler())
	app.Get("/whoami", func(c fiber.Ctx) error {
		user, ok := blameable.UserFromContext[string](c.Context())
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(user)
	})
	return app
}

func call(t *testing.T, app *fiber.App, h *ActorHeaders) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if h != nil {
		h.Apply(req.Header)
	}
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHandlerInjectsActor(t *testing.T) {
	app := newApp(verifier(false, now))

	h := signed(t, &Actor{UserID: "u1", Username: "alice"})
	if status, body := call(t, app, &h); status != fiber.StatusOK || body != "alice" {
		t.Fatalf("unexpected response %d %q", status, body)
	}
	if status, body := call(t, app, nil); status != fiber.StatusOK || body != "anonymous" {
		t.Fatalf("unexpected anonymous response %d %q", status, body)
	}

	bad := h
	bad.Signature = "00"
	status, body := call(t, app, &bad)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if int(payload["code"].(float64)) != int(errors.ErrCodeUnauthenticated) {
		t.Fatalf("unexpected error body %s", body)
	}
}

func TestHandlerRequired(t *testing.T) {
	app := newApp(verifier(true, now))
	if status, _ := call(t, app, nil); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without headers, got %d", status)
	}
}

func TestWithActor(t *testing.T) {
	id := ulidv2.Make()
	ctx := WithActor(context.Background(), &Actor{UserID: id.String(), Username: "alice"})

	if user, _ := blameable.UserFromContext[string](ctx); user != "alice" {
		t.Fatalf("unexpected string user %q", user)
	}
	ac, ok := repository.ActorFromContext(ctx)
	if !ok || ac.UserID != id {
		t.Fatalf("unexpected actor context %+v", ac)
	}

	ctx = WithActor(context.Background(), &Actor{UserID: "42"})
	if user, ok := blameable.UserFromContext[int64](ctx); !ok || user != 42 {
		t.Fatalf("expected numeric user for reference mode, got %d", user)
	}
}
