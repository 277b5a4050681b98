package server

import (
	"strings"
	"testing"
	"time"

	"github.com/sqlock/sqlock/lib/lockstore"
	"github.com/sqlock/sqlock/lib/lockstore/lstore"
	"github.com/sqlock/sqlock/rpc/common"
)

var (
	testKey   = lockstore.KeyForDatabase("/data/app.sqlite")
	testStart = time.UnixMilli(1_000_000)
)

func TestAdapterPutDeleteGet(t *testing.T) {
	adapter := NewLockStoreServerAdapter()
	store := lstore.NewLocalStore()

	nowMs := testStart.UnixMilli()
	expiresMs := testStart.Add(10 * time.Second).UnixMilli()

	t.Run("put on empty store", func(t *testing.T) {
		resp := adapter.Handle(common.NewPutRequest(testKey, "owner-a", nowMs, expiresMs), store)
		if resp.Err != "" {
			t.Fatalf("unexpected error: %s", resp.Err)
		}
		if resp.MsgType != common.MsgTLockPut {
			t.Errorf("response type = %s, want put", resp.MsgType)
		}
	})

	t.Run("get returns the record", func(t *testing.T) {
		resp := adapter.Handle(common.NewGetRequest(testKey), store)
		if resp.Err != "" {
			t.Fatalf("unexpected error: %s", resp.Err)
		}
		if !resp.Ok {
			t.Fatal("record should be found")
		}
		if resp.OwnerID != "owner-a" {
			t.Errorf("owner = %q, want owner-a", resp.OwnerID)
		}
		if resp.ExpiresMillis != expiresMs {
			t.Errorf("expires = %d, want %d", resp.ExpiresMillis, expiresMs)
		}
	})

	t.Run("conflicting put carries the return code", func(t *testing.T) {
		resp := adapter.Handle(common.NewPutRequest(testKey, "owner-b", nowMs, expiresMs), store)
		if resp.Err == "" {
			t.Fatal("expected a condition failure")
		}
		if lockstore.RetCode(resp.ErrCode) != lockstore.RetCConditionFailed {
			t.Errorf("error code = %d, want condition failed", resp.ErrCode)
		}
	})

	t.Run("delete with wrong owner fails", func(t *testing.T) {
		resp := adapter.Handle(common.NewDeleteRequest(testKey, "owner-b"), store)
		if lockstore.RetCode(resp.ErrCode) != lockstore.RetCConditionFailed {
			t.Errorf("error code = %d, want condition failed", resp.ErrCode)
		}
	})

	t.Run("delete with right owner succeeds", func(t *testing.T) {
		resp := adapter.Handle(common.NewDeleteRequest(testKey, "owner-a"), store)
		if resp.Err != "" {
			t.Fatalf("unexpected error: %s", resp.Err)
		}

		resp = adapter.Handle(common.NewGetRequest(testKey), store)
		if resp.Ok {
			t.Error("record should be gone after delete")
		}
	})
}

func TestAdapterErrors(t *testing.T) {
	adapter := NewLockStoreServerAdapter()

	t.Run("nil store", func(t *testing.T) {
		resp := adapter.Handle(common.NewGetRequest(testKey), nil)
		if resp.MsgType != common.MsgTError {
			t.Errorf("response type = %s, want error", resp.MsgType)
		}
	})

	t.Run("unsupported message type", func(t *testing.T) {
		resp := adapter.Handle(&common.Message{MsgType: common.MsgTCustom}, lstore.NewLocalStore())
		if resp.MsgType != common.MsgTError {
			t.Fatalf("response type = %s, want error", resp.MsgType)
		}
		if !strings.Contains(resp.Err, "unsupported message type") {
			t.Errorf("unexpected error message: %s", resp.Err)
		}
	})
}
