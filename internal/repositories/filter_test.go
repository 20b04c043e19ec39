package repositories

import (
	"testing"

	"github.com/DevCodeRift/boundless-saga/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMatchWhere(t *testing.T) {
	filter := models.AnyOf{
		{Column: models.ColumnDiscordID, Op: models.OpEquals, Value: "d1"},
		{Column: models.ColumnDeviceFingerprint, Op: models.OpEquals, Value: "fp-A"},
		{Column: models.ColumnIPAddresses, Op: models.OpContains, Value: "1.2.3.4"},
		{Column: models.ColumnBrowserFingerprint, Op: models.OpJSONEquals, Value: `{"userAgent":"UA"}`},
	}

	where, args, err := buildMatchWhere(filter)
	require.NoError(t, err)

	assert.Equal(t,
		"(discord_id = $1 OR device_fingerprint = $2 OR $3 = ANY(ip_addresses) OR browser_fingerprint = $4::jsonb)",
		where)
	assert.Equal(t, []any{"d1", "fp-A", "1.2.3.4", `{"userAgent":"UA"}`}, args)
}

func TestBuildMatchWhere_Empty(t *testing.T) {
	where, args, err := buildMatchWhere(nil)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestBuildMatchWhere_RejectsUnknownColumn(t *testing.T) {
	_, _, err := buildMatchWhere(models.AnyOf{
		{Column: "password_hash", Op: models.OpEquals, Value: "x"},
	})
	assert.Error(t, err)
}

func TestBuildMatchWhere_RejectsMismatchedOperator(t *testing.T) {
	_, _, err := buildMatchWhere(models.AnyOf{
		{Column: models.ColumnEmail, Op: models.OpContains, Value: "a@b.c"},
	})
	assert.Error(t, err)
}
