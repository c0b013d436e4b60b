package e2e

import (
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cardservice/internal/cardnumber"
	"github.com/nkiryanov/cardservice/internal/handlers"
	"github.com/nkiryanov/cardservice/internal/logger"
	"github.com/nkiryanov/cardservice/internal/repository"
	"github.com/nkiryanov/cardservice/internal/repository/postgres"
	"github.com/nkiryanov/cardservice/internal/service/auth"
	"github.com/nkiryanov/cardservice/internal/service/card"
	"github.com/nkiryanov/cardservice/internal/service/transfer"
	"github.com/nkiryanov/cardservice/internal/service/user"
	"github.com/nkiryanov/cardservice/internal/testutil"
)

const SecretKey = "test-secret"

type Services struct {
	AuthService     *auth.AuthService
	CardService     *card.CardService
	TransferService *transfer.TransferService
	UserService     *user.UserService

	Storage repository.Storage
	Encoder *cardnumber.Encoder
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.InTx with it
func ServeInTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.InTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)

		encoder, err := cardnumber.NewEncoder(SecretKey)
		require.NoError(t, err, "encoder should be created without errors")

		as, err := auth.NewService(auth.Config{SecretKey: SecretKey}, storage)
		require.NoError(t, err, "auth service starting error")

		cs := card.NewService(encoder, storage)
		ts := transfer.NewService(encoder, storage, logger.NewNoOpLogger())
		us := user.NewService(storage)

		router := handlers.NewRouter(as, cs, ts, us, logger.NewNoOpLogger())

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			AuthService:     as,
			CardService:     cs,
			TransferService: ts,
			UserService:     us,
			Storage:         storage,
			Encoder:         encoder,
		})
	})
}
