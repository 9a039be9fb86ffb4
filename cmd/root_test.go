package cmd

import (
	"testing"
	"time"

	"codedrop/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestApplyViperLayersSessionKeys(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("session.show_qr", true)
	viper.Set("session.copy_code", true)
	viper.Set("session.auto_accept", true)
	viper.Set("session.cancel_grace", "5s")
	viper.Set("session.code_words", 3)

	cfg := config.NewDefaultConfig()
	applyViper(cfg)

	assert.True(t, cfg.Session.ShowQR)
	assert.True(t, cfg.Session.CopyCode)
	assert.True(t, cfg.Session.AutoAccept)
	assert.Equal(t, 5*time.Second, cfg.Session.CancelGrace)
	assert.Equal(t, 3, cfg.Session.CodeWords)
}

func TestApplyViperKeepsDefaultsWhenUnset(t *testing.T) {
	t.Cleanup(viper.Reset)

	cfg := config.NewDefaultConfig()
	applyViper(cfg)

	assert.False(t, cfg.Session.ShowQR)
	assert.False(t, cfg.Session.AutoAccept)
	assert.Equal(t, 3*time.Second, cfg.Session.CancelGrace)
	assert.Equal(t, 2, cfg.Session.CodeWords)
}

func TestBindSessionFlagsBindsOnlyPresentFlags(t *testing.T) {
	t.Cleanup(viper.Reset)

	bindSessionFlags(receiveCmd)

	// The receive command carries dst and yes; the send-only flags stay
	// unbound so their keys still fall through to file/env.
	assert.Equal(t, ".", viper.GetString("receive.dst"))
	assert.False(t, viper.IsSet("session.show_qr"))
}

func TestBindSessionFlagsPrefersExplicitFlag(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Cleanup(func() { sendFlags = SendFlags{} })

	viper.Set("session.copy_code", false)
	err := sendCmd.Flags().Set("qr", "true")
	assert.NoError(t, err)

	bindSessionFlags(sendCmd)

	cfg := config.NewDefaultConfig()
	applyViper(cfg)
	assert.True(t, cfg.Session.ShowQR, "a flag set on the command line wins")
}
