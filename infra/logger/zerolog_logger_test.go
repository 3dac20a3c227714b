package logger

import (
	"os"
	"testing"
)

func TestNewZerologLogger(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatal("expected logger")
	}
	l.Infof("hello %s", "world")
	l.Debugw("structured", map[string]any{"k": "v"})

	os.Unsetenv("APP_ENV")
	l = NewZerologLogger("test")
	if l == nil {
		t.Fatal("expected logger")
	}
	l.Warnf("warn")
	l.Errorf("err")
}
