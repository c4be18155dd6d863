package pgreview

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/RiskSync/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPGReview_RepoFlow(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "risksync_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/risksync_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	inserted, err := st.InsertReview(ctx, "42", "WC-1042")
	require.NoError(t, err)
	require.True(t, inserted)

	// Повторная вставка того же заказа — no-op.
	inserted, err = st.InsertReview(ctx, "42", "WC-1042")
	require.NoError(t, err)
	require.False(t, inserted)

	r, err := st.GetByOrderRef(ctx, "WC-1042")
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, models.ReviewStatusHold, r.Status)
	require.Equal(t, "", r.Flag)
	require.Equal(t, "", r.Action)

	// Фолбэк: поиск по order_id, когда номер не находится.
	r, err = st.GetByOrderRef(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, "WC-1042", r.OrderNumber)

	r, err = st.GetByOrderRef(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, r)

	require.NoError(t, st.UpdateScore(ctx, "WC-1042", models.ReviewStatusFlagged, models.FlagRed, "0.91"))
	r, err = st.GetByOrderRef(ctx, "WC-1042")
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatusFlagged, r.Status)
	require.Equal(t, models.FlagRed, r.Flag)
	require.Equal(t, "0.91", r.Score)

	require.NoError(t, st.UpdateAction(ctx, "WC-1042", models.ActionDeclined, "manual decline"))
	r, err = st.GetByOrderRef(ctx, "WC-1042")
	require.NoError(t, err)
	require.Equal(t, models.ActionDeclined, r.Action)
	require.Equal(t, "manual decline", r.Message)

	n, err := st.PurgeAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	r, err = st.GetByOrderRef(ctx, "WC-1042")
	require.NoError(t, err)
	require.Nil(t, r)
}
