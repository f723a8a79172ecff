package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func TestOptions(t *testing.T) {
	cfg := ClientConfig{Host: "ch", Port: 9000, Database: "spreadscout", User: "u", Password: "p"}
	for _, opt := range []ClientOption{WithAsyncInsert(true), WithMaxExecutionTime(30 * time.Second), WithHTTP(true)} {
		opt(&cfg)
	}
	o := options(cfg)
	if o.Addr[0] != "ch:9000" || o.Auth.Database != "spreadscout" {
		t.Fatalf("unexpected addr/auth %v %+v", o.Addr, o.Auth)
	}
	if o.Protocol != clickhouse.HTTP {
		t.Fatalf("expected http protocol")
	}
	if o.Settings["max_execution_time"] != 30 || o.Settings["async_insert"] != 1 {
		t.Fatalf("unexpected settings %v", o.Settings)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without host")
	}
}
