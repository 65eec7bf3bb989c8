package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bookwormhq/bookworm-service/internal/storage/memory"
	"github.com/bookwormhq/bookworm-service/internal/types/users"
	"github.com/bookwormhq/bookworm-service/internal/utils/jwt"
)

const testSecret = "test_secret"

func doRegister(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func doLogin(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.Message
}

func TestRegister(t *testing.T) {
	store := memory.New()
	w := doRegister(t, Register(store, testSecret),
		`{"username":"alice","email":"alice@example.com","password":"secret1"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp users.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Token == "" {
		t.Fatal("expected a token")
	}

	// The token must resolve back to the created user.
	userID, err := jwt.ExtractUserIDFromToken(resp.Token, testSecret)
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if userID != resp.User.ID {
		t.Fatalf("token subject %q does not match user id %q", userID, resp.User.ID)
	}

	if !strings.Contains(resp.User.ProfileImage, "seed=alice") {
		t.Fatalf("expected avatar seeded by username, got %q", resp.User.ProfileImage)
	}

	// The password hash never leaves the service.
	if strings.Contains(w.Body.String(), "secret1") {
		t.Fatal("response leaked the password")
	}
}

func TestRegister_Validation(t *testing.T) {
	store := memory.New()
	handler := Register(store, testSecret)

	cases := map[string]string{
		"short username":   `{"username":"al","email":"a@example.com","password":"secret1"}`,
		"short password":   `{"username":"alice","email":"a@example.com","password":"abc"}`,
		"missing email":    `{"username":"alice","password":"secret1"}`,
		"missing username": `{"email":"a@example.com","password":"secret1"}`,
		"empty body":       ``,
	}

	for name, body := range cases {
		w := doRegister(t, handler, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, w.Code)
		}
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := memory.New()
	handler := Register(store, testSecret)

	w := doRegister(t, handler, `{"username":"alice","email":"shared@example.com","password":"secret1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("first registration failed: %d", w.Code)
	}

	// Same email, different username: still a conflict, and it names the
	// email, which is checked first.
	w = doRegister(t, handler, `{"username":"bob","email":"shared@example.com","password":"secret1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := message(t, w); got != "email already exists" {
		t.Fatalf("expected email conflict message, got %q", got)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	store := memory.New()
	handler := Register(store, testSecret)

	doRegister(t, handler, `{"username":"alice","email":"alice@example.com","password":"secret1"}`)

	w := doRegister(t, handler, `{"username":"alice","email":"other@example.com","password":"secret1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := message(t, w); got != "username already exists" {
		t.Fatalf("expected username conflict message, got %q", got)
	}
}

func TestRegister_EmailConflictWinsOverUsername(t *testing.T) {
	store := memory.New()
	handler := Register(store, testSecret)

	doRegister(t, handler, `{"username":"alice","email":"alice@example.com","password":"secret1"}`)

	// Both fields collide; the email collision is reported.
	w := doRegister(t, handler, `{"username":"alice","email":"alice@example.com","password":"secret1"}`)
	if got := message(t, w); got != "email already exists" {
		t.Fatalf("expected email conflict message, got %q", got)
	}
}

func TestLogin(t *testing.T) {
	store := memory.New()
	doRegister(t, Register(store, testSecret),
		`{"username":"alice","email":"alice@example.com","password":"secret1"}`)

	w := doLogin(t, Login(store, testSecret),
		`{"email":"alice@example.com","password":"secret1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp users.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, err := jwt.ExtractUserIDFromToken(resp.Token, testSecret); err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
}

func TestLogin_EnumerationResistance(t *testing.T) {
	store := memory.New()
	doRegister(t, Register(store, testSecret),
		`{"username":"alice","email":"alice@example.com","password":"secret1"}`)
	handler := Login(store, testSecret)

	wrongPassword := doLogin(t, handler, `{"email":"alice@example.com","password":"wrong-pass"}`)
	unknownEmail := doLogin(t, handler, `{"email":"nobody@example.com","password":"secret1"}`)

	if wrongPassword.Code != http.StatusBadRequest || unknownEmail.Code != http.StatusBadRequest {
		t.Fatalf("expected 400/400, got %d/%d", wrongPassword.Code, unknownEmail.Code)
	}

	// Both failure modes must be indistinguishable.
	if message(t, wrongPassword) != message(t, unknownEmail) {
		t.Fatalf("login errors differ: %q vs %q", message(t, wrongPassword), message(t, unknownEmail))
	}
}

func TestLogin_MissingFields(t *testing.T) {
	store := memory.New()
	handler := Login(store, testSecret)

	for name, body := range map[string]string{
		"missing email":    `{"password":"secret1"}`,
		"missing password": `{"email":"alice@example.com"}`,
	} {
		w := doLogin(t, handler, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, w.Code)
		}
	}
}
