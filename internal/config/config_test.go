package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadStockPolicyFlags(t *testing.T) {
	t.Setenv("ALLOW_NEGATIVE_STOCK", "true")
	t.Setenv("SKIP_UNMATCHED_LINES", "")

	cfg := Load()
	if !cfg.AllowNegativeStock {
		t.Fatalf("expected ALLOW_NEGATIVE_STOCK=true to enable negative stock")
	}
	if cfg.SkipUnmatchedLines {
		t.Fatalf("expected SKIP_UNMATCHED_LINES to default off")
	}

	t.Setenv("ALLOW_NEGATIVE_STOCK", "banana")
	cfg = Load()
	if cfg.AllowNegativeStock {
		t.Fatalf("expected unrecognized value to read as false")
	}
}

func TestLoadDefaultStockID(t *testing.T) {
	t.Setenv("DEFAULT_STOCK_ID", "")

	cfg := Load()
	if cfg.StockID != "wh-main" {
		t.Fatalf("expected default stock id wh-main, got %q", cfg.StockID)
	}
}
