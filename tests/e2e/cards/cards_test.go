package cards

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cardservice/internal/testutil"
	"github.com/nkiryanov/cardservice/tests/e2e"
)

type cardView struct {
	ID         string  `json:"id"`
	Number     string  `json:"number"`
	Owner      string  `json:"owner"`
	Status     string  `json:"status"`
	ExpiryDate string  `json:"expiryDate"`
	Balance    float64 `json:"balance"`
}

// do sends an authenticated request and returns status code with body
func do(t *testing.T, method string, url string, token string, data string) (int, []byte) {
	t.Helper()

	var body io.Reader
	if data != "" {
		body = strings.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	if data != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode, respBody
}

func Test_CardLifecycle(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	e2e.ServeInTx(pg.Pool, t, func(tx pgx.Tx, srvURL string, s e2e.Services) {
		t.Run("block and unblock own card", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				user, token, err := s.AuthService.Register(t.Context(), "cardholder", "StrongEnoughPassword", "Ivanov Ivan Ivanovich")
				require.NoError(t, err)
				card, err := s.CardService.IssueCard(t.Context(), user.ID, "")
				require.NoError(t, err)

				code, body := do(t, http.MethodPost, fmt.Sprintf("%s/api/cards/%s/block", srvURL, card.ID), token, "")
				require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", string(body))

				var view cardView
				require.NoError(t, json.Unmarshal(body, &view))
				require.Equal(t, "BLOCKED", view.Status)
				require.Equal(t, "Ivanov Ivan Ivanovich", view.Owner)

				// Blocking again is a no-op
				code, body = do(t, http.MethodPost, fmt.Sprintf("%s/api/cards/%s/block", srvURL, card.ID), token, "")
				require.Equal(t, http.StatusOK, code)
				require.NoError(t, json.Unmarshal(body, &view))
				require.Equal(t, "BLOCKED", view.Status)

				code, body = do(t, http.MethodPost, fmt.Sprintf("%s/api/cards/%s/unblock", srvURL, card.ID), token, "")
				require.Equal(t, http.StatusOK, code)
				require.NoError(t, json.Unmarshal(body, &view))
				require.Equal(t, "ACTIVE", view.Status)

				// Ledger keeps both operations
				code, body = do(t, http.MethodGet, fmt.Sprintf("%s/api/cards/%s/operations", srvURL, card.ID), token, "")
				require.Equal(t, http.StatusOK, code)

				var ops []struct {
					Type        string `json:"type"`
					Description string `json:"description"`
				}
				require.NoError(t, json.Unmarshal(body, &ops))
				require.Len(t, ops, 2)
				types := []string{ops[0].Type, ops[1].Type}
				require.Contains(t, types, "BLOCK")
				require.Contains(t, types, "UNBLOCK")
			})
		})

		t.Run("cannot touch other user's card", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				owner, _, err := s.AuthService.Register(t.Context(), "owner", "StrongEnoughPassword", "Ivanov Ivan Ivanovich")
				require.NoError(t, err)
				card, err := s.CardService.IssueCard(t.Context(), owner.ID, "")
				require.NoError(t, err)

				_, strangerToken, err := s.AuthService.Register(t.Context(), "stranger", "StrongEnoughPassword", "Petrov Petr Petrovich")
				require.NoError(t, err)

				code, body := do(t, http.MethodPost, fmt.Sprintf("%s/api/cards/%s/block", srvURL, card.ID), strangerToken, "")
				require.Equalf(t, http.StatusForbidden, code, "not expected code. Body: %s", string(body))

				code, _ = do(t, http.MethodGet, fmt.Sprintf("%s/api/cards/%s/balance", srvURL, card.ID), strangerToken, "")
				require.Equal(t, http.StatusForbidden, code)
			})
		})

		t.Run("balance is visible to the owner", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				user, token, err := s.AuthService.Register(t.Context(), "balanceuser", "StrongEnoughPassword", "Ivanov Ivan Ivanovich")
				require.NoError(t, err)
				card, err := s.CardService.IssueCard(t.Context(), user.ID, "")
				require.NoError(t, err)

				code, body := do(t, http.MethodGet, fmt.Sprintf("%s/api/cards/%s/balance", srvURL, card.ID), token, "")
				require.Equal(t, http.StatusOK, code)
				require.JSONEq(t, `{"balance": 0}`, string(body))
			})
		})
	})
}

func Test_CardAdmin(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	e2e.ServeInTx(pg.Pool, t, func(tx pgx.Tx, srvURL string, s e2e.Services) {
		adminToken := func(t *testing.T) string {
			t.Helper()

			created, err := s.AuthService.EnsureAdmin(t.Context(), "admin", "AdminPassword1", "Admin Admin Admin")
			require.NoError(t, err)
			require.True(t, created)

			_, token, err := s.AuthService.Login(t.Context(), "admin", "AdminPassword1")
			require.NoError(t, err)
			return token
		}

		t.Run("admin issues card for user", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				token := adminToken(t)
				user, _, err := s.AuthService.Register(t.Context(), "issued-to", "StrongEnoughPassword", "Ivanov Ivan Ivanovich")
				require.NoError(t, err)

				code, body := do(t, http.MethodPost, fmt.Sprintf("%s/api/cards/%s", srvURL, user.ID), token, "")
				require.Equalf(t, http.StatusCreated, code, "not expected code. Body: %s", string(body))

				var view cardView
				require.NoError(t, json.Unmarshal(body, &view))
				require.Equal(t, "ACTIVE", view.Status)
				require.Equal(t, 0.0, view.Balance)
				require.Equal(t, "Ivanov Ivan Ivanovich", view.Owner)
				require.True(t, strings.HasPrefix(view.Number, "**** **** **** "))
				require.True(t, strings.HasSuffix(view.ExpiryDate, "-01"), "expiry should be normalized to first of month")

				// Owner name can be overridden
				code, body = do(t, http.MethodPost, fmt.Sprintf("%s/api/cards/%s", srvURL, user.ID), token, `{"owner": "Sidorov Fedor Olegovich"}`)
				require.Equal(t, http.StatusCreated, code)
				require.NoError(t, json.Unmarshal(body, &view))
				require.Equal(t, "Sidorov Fedor Olegovich", view.Owner)
			})
		})

		t.Run("admin updates card status", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				token := adminToken(t)
				user, _, err := s.AuthService.Register(t.Context(), "status-user", "StrongEnoughPassword", "Ivanov Ivan Ivanovich")
				require.NoError(t, err)
				card, err := s.CardService.IssueCard(t.Context(), user.ID, "")
				require.NoError(t, err)

				code, body := do(t, http.MethodPatch, fmt.Sprintf("%s/api/cards/%s/status", srvURL, card.ID), token, `{"status": "BLOCKED"}`)
				require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", string(body))

				var view cardView
				require.NoError(t, json.Unmarshal(body, &view))
				require.Equal(t, "BLOCKED", view.Status)

				// Unknown status is rejected at the boundary
				code, _ = do(t, http.MethodPatch, fmt.Sprintf("%s/api/cards/%s/status", srvURL, card.ID), token, `{"status": "MELTED"}`)
				require.Equal(t, http.StatusBadRequest, code)
			})
		})

		t.Run("regular user cannot use admin routes", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				user, token, err := s.AuthService.Register(t.Context(), "plain-user", "StrongEnoughPassword", "Ivanov Ivan Ivanovich")
				require.NoError(t, err)

				code, body := do(t, http.MethodPost, fmt.Sprintf("%s/api/cards/%s", srvURL, user.ID), token, "")
				require.Equalf(t, http.StatusForbidden, code, "not expected code. Body: %s", string(body))
				require.JSONEq(t, `
					{
						"error": "service_error",
						"message": "Access denied"
					}`, string(body))
			})
		})

		t.Run("admin sees all cards, user sees own", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				token := adminToken(t)

				userA, tokenA, err := s.AuthService.Register(t.Context(), "user-a", "StrongEnoughPassword", "Ivanov Ivan Ivanovich")
				require.NoError(t, err)
				userB, _, err := s.AuthService.Register(t.Context(), "user-b", "StrongEnoughPassword", "Petrov Petr Petrovich")
				require.NoError(t, err)

				_, err = s.CardService.IssueCard(t.Context(), userA.ID, "")
				require.NoError(t, err)
				_, err = s.CardService.IssueCard(t.Context(), userB.ID, "")
				require.NoError(t, err)

				var list struct {
					Cards []cardView `json:"cards"`
					Total int64      `json:"total"`
				}

				code, body := do(t, http.MethodGet, srvURL+"/api/cards", token, "")
				require.Equal(t, http.StatusOK, code)
				require.NoError(t, json.Unmarshal(body, &list))
				require.Equal(t, int64(2), list.Total)

				code, body = do(t, http.MethodGet, srvURL+"/api/cards", tokenA, "")
				require.Equal(t, http.StatusOK, code)
				require.NoError(t, json.Unmarshal(body, &list))
				require.Equal(t, int64(1), list.Total)

				// Owner filter
				code, body = do(t, http.MethodGet, srvURL+"/api/cards?owner=petrov", token, "")
				require.Equal(t, http.StatusOK, code)
				require.NoError(t, json.Unmarshal(body, &list))
				require.Equal(t, int64(1), list.Total)
				require.Equal(t, "Petrov Petr Petrovich", list.Cards[0].Owner)

				// Free text search matches the owner name the same way
				code, body = do(t, http.MethodGet, srvURL+"/api/cards?q=petrov", token, "")
				require.Equal(t, http.StatusOK, code)
				require.NoError(t, json.Unmarshal(body, &list))
				require.Equal(t, int64(1), list.Total)
				require.Equal(t, "Petrov Petr Petrovich", list.Cards[0].Owner)
			})
		})
	})
}
