package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDefault(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load("")
	require.NoError(t, err)
	return c
}

func TestPriceForByClass(t *testing.T) {
	c := mustDefault(t)

	retail, err := c.PriceFor(Retail, MTN, "5GB")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), retail.Minor)
	assert.Equal(t, "5GB", retail.PlanLabel)

	wholesale, err := c.PriceFor(Wholesale, MTN, "5GB")
	require.NoError(t, err)
	assert.Equal(t, int64(2460), wholesale.Minor)
	assert.Less(t, wholesale.Minor, retail.Minor)
}

func TestPriceForUnknownPlan(t *testing.T) {
	c := mustDefault(t)

	_, err := c.PriceFor(Retail, MTN, "7TB")
	assert.ErrorIs(t, err, ErrPlanNotFound)

	// 7GB exists in the retail MTN table only
	_, err = c.PriceFor(Wholesale, MTN, "7GB")
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = c.PriceFor(Retail, Telecel, "1GB")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPriceForFractionalPrice(t *testing.T) {
	c := mustDefault(t)

	p, err := c.PriceFor(Retail, Telecel, "10")
	require.NoError(t, err)
	assert.Equal(t, int64(4920), p.Minor)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("49.20")))
}

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("mtn")
	require.NoError(t, err)
	assert.Equal(t, MTN, n)

	n, err = ParseNetwork("airteltigo")
	require.NoError(t, err)
	assert.Equal(t, AirtelTigo, n)

	_, err = ParseNetwork("Glo")
	assert.ErrorIs(t, err, ErrUnknownNetwork)
}

func TestPlanIDHelpers(t *testing.T) {
	assert.Equal(t, "5GB", NormalizePlanID(" 5 "))
	assert.Equal(t, "5GB", NormalizePlanID("5gb"))
	assert.Equal(t, "5", Capacity("5GB"))
	assert.Equal(t, "100", Capacity("100GB"))
	assert.Equal(t, "MTN:5GB", PlanKey(MTN, "5"))
}

func TestMinorConversions(t *testing.T) {
	assert.Equal(t, int64(1750), ToMinor(decimal.RequireFromString("17.499")))
	assert.Equal(t, "30.00", FromMinor(3000).StringFixed(2))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.json")
	doc := `{"retail":{"MTN":[{"id":"1GB","name":"1GB","price":"7.00"}]},"wholesale":{"MTN":[{"id":"1GB","name":"1GB","price":"5.00"}]}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	p, err := c.PriceFor(Retail, MTN, "1GB")
	require.NoError(t, err)
	assert.Equal(t, int64(700), p.Minor)
}

func TestParseRejectsBadTables(t *testing.T) {
	_, err := Parse([]byte(`{"retail":{}}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"retail":{"Glo":[]},"wholesale":{}}`))
	assert.ErrorIs(t, err, ErrUnknownNetwork)

	_, err = Parse([]byte(`{"retail":{"MTN":[{"id":"1GB","name":"1GB","price":"0"}]},"wholesale":{}}`))
	assert.Error(t, err)
}
