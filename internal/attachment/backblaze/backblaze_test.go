package backblaze

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upiiz/school-records-api/internal/attachment"
)

func TestMissingCredentialsAreUnavailable(t *testing.T) {
	ctx := context.Background()
	backend := New("", "", "sd-upiiz")

	require.ErrorIs(t, backend.Put(ctx, "Alumnos/a.png", []byte("x"), "image/png"), attachment.ErrUnavailable)
	require.ErrorIs(t, backend.Delete(ctx, "Alumnos/a.png"), attachment.ErrUnavailable)
}
