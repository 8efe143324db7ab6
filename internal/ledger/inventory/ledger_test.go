package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinova-system/internal/database/models"
	"clinova-system/internal/ledger"
)

func TestSignedEffect(t *testing.T) {
	cases := []struct {
		txnType  string
		quantity int
		expected int
		errCode  ledger.Code
	}{
		{models.TransactionRestock, 10, 10, ""},
		{models.TransactionReturn, 2, 2, ""},
		{models.TransactionConsume, 3, -3, ""},
		{models.TransactionAdjust, -4, -4, ""},
		{models.TransactionAdjust, 4, 4, ""},
		{models.TransactionRestock, 0, 0, ledger.CodeInvalidArgument},
		{models.TransactionRestock, -1, 0, ledger.CodeInvalidArgument},
		{models.TransactionConsume, -3, 0, ledger.CodeInvalidArgument},
		{models.TransactionAdjust, 0, 0, ledger.CodeInvalidArgument},
		{"teleport", 1, 0, ledger.CodeInvalidArgument},
	}
	for _, tc := range cases {
		effect, err := signedEffect(tc.txnType, tc.quantity)
		if tc.errCode != "" {
			assert.Equal(t, tc.errCode, ledger.CodeOf(err), "%s %d", tc.txnType, tc.quantity)
			continue
		}
		require.NoError(t, err, "%s %d", tc.txnType, tc.quantity)
		assert.Equal(t, tc.expected, effect, "%s %d", tc.txnType, tc.quantity)
	}
}

func TestRequiredQuantityRoundsUp(t *testing.T) {
	cases := []struct {
		perUse   string
		services int
		expected int
	}{
		{"1.00", 2, 2},
		{"0.50", 1, 1},
		{"0.50", 4, 2},
		{"2.50", 3, 8}, // 7.5 rounds up to whole units
		{"0.10", 1, 1},
		{"3.00", 1, 3},
	}
	for _, tc := range cases {
		got, err := requiredQuantity(tc.perUse, tc.services)
		require.NoError(t, err, "%s x %d", tc.perUse, tc.services)
		assert.Equal(t, tc.expected, got, "%s x %d", tc.perUse, tc.services)
	}
}

func TestRequiredQuantityRejectsMalformed(t *testing.T) {
	_, err := requiredQuantity("a lot", 1)
	assert.Error(t, err)
}

func openAlert(alertType string) *models.LowStockAlert {
	return &models.LowStockAlert{ID: 1, AlertType: alertType}
}

func TestDecideAlertOpensAtThreshold(t *testing.T) {
	action, severity := decideAlert(5, 5, nil)
	assert.Equal(t, alertOpen, action)
	assert.Equal(t, models.AlertWarning, severity)
}

func TestDecideAlertOpensCriticalAtZero(t *testing.T) {
	action, severity := decideAlert(0, 5, nil)
	assert.Equal(t, alertOpen, action)
	assert.Equal(t, models.AlertCritical, severity)
}

func TestDecideAlertAboveThresholdNoAlert(t *testing.T) {
	action, _ := decideAlert(6, 5, nil)
	assert.Equal(t, alertNone, action)
}

func TestDecideAlertDeduplicates(t *testing.T) {
	// Stock sinking further while a warning is already open changes
	// nothing until it reaches zero.
	action, _ := decideAlert(3, 5, openAlert(models.AlertWarning))
	assert.Equal(t, alertNone, action)
}

func TestDecideAlertEscalatesWarningToCritical(t *testing.T) {
	action, severity := decideAlert(0, 5, openAlert(models.AlertWarning))
	assert.Equal(t, alertEscalate, action)
	assert.Equal(t, models.AlertCritical, severity)
}

func TestDecideAlertNeverDowngrades(t *testing.T) {
	// Recovering from zero to a still-low level keeps the critical alert.
	action, _ := decideAlert(2, 5, openAlert(models.AlertCritical))
	assert.Equal(t, alertNone, action)
}

func TestDecideAlertResolvesOnRecovery(t *testing.T) {
	action, _ := decideAlert(8, 5, openAlert(models.AlertWarning))
	assert.Equal(t, alertResolve, action)

	action, _ = decideAlert(8, 5, openAlert(models.AlertCritical))
	assert.Equal(t, alertResolve, action)
}
