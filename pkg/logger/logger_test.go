package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPackageHelpers_WriteToCurrentLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Debug("d")
	Info("i", zap.Int("n", 1))
	Warn("w")
	Error("e")

	entries := logs.AllUntimed()
	assert.Len(t, entries, 4)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, int64(1), entries[1].ContextMap()["n"])
}

func TestFatal_LogsBeforeExiting(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	// 测试中把退出替换成panic
	SetLogger(zap.New(core, zap.WithFatalHook(zapcore.WriteThenPanic)))
	t.Cleanup(func() { SetLogger(nil) })

	assert.Panics(t, func() { Fatal("数据库连接失败", zap.String("db", "chat")) })
	assert.Equal(t, 1, logs.FilterMessage("数据库连接失败").FilterField(zap.String("db", "chat")).Len())
}

func TestSetLogger_NilFallsBackToNop(t *testing.T) {
	SetLogger(nil)
	assert.NotPanics(t, func() { Info("ignored") })
	assert.NoError(t, Sync())
}
