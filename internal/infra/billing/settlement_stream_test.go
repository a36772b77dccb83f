//go:build !integration

package billing_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"salesops-console/internal/domain/model"
	"salesops-console/internal/domain/ports/adapter"
	"salesops-console/internal/infra/billing"
)

func sseHandler(t *testing.T, lines []string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/public/transaction/read_txn" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, l := range lines {
			fmt.Fprintf(w, "data: %s\n\n", l)
			flusher.Flush()
		}
		// Hold the connection so the client does not treat the end of
		// the scripted events as a transport drop mid-test.
		<-r.Context().Done()
	})
}

func openStream(t *testing.T, handler http.Handler) adapter.SettlementStream {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw := billing.NewGateway(srv.URL, srv.URL, 5*time.Second, &staticTokens{token: "tok"}, newTestLogger())
	stream, err := gw.OpenSettlementStream(context.Background(), "txn-1")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(stream.Close)
	return stream
}

func nextEvent(t *testing.T, stream adapter.SettlementStream) adapter.SettlementEvent {
	t.Helper()
	select {
	case ev, ok := <-stream.Events():
		if !ok {
			t.Fatal("stream closed before expected event")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for settlement event")
		return adapter.SettlementEvent{}
	}
}

func TestSettlementStream_EventMapping(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    model.SettlementOutcome
	}{
		{"status SUCCESS", `{"status":"SUCCESS"}`, model.SettlementSucceeded},
		{"txn_status SUCCESS", `{"txn_status":"SUCCESS"}`, model.SettlementSucceeded},
		{"success flag", `{"success":true}`, model.SettlementSucceeded},
		{"status FAILED", `{"status":"FAILED"}`, model.SettlementFailed},
		{"status CANCELLED", `{"status":"CANCELLED"}`, model.SettlementFailed},
		{"txn not found", `{"error":"TXN_NOT_FOUND"}`, model.SettlementNotFound},
		{"anything else waits", `{"status":"PROCESSING"}`, model.SettlementWaiting},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			stream := openStream(t, sseHandler(t, []string{c.payload}))
			if ev := nextEvent(t, stream); ev.Outcome != c.want {
				t.Fatalf("want %s, got %s", c.want, ev.Outcome)
			}
		})
	}
}

func TestSettlementStream_MerchantTxnBackfill(t *testing.T) {
	payload := `{"status":"PROCESSING","txn_data":{"meta":{"merchant_txn":{"qr_code":"qr-1","receiver":{"account_number":"0011","bank_name":"ACB","transaction_content":"TXN-1"}}}}}`
	stream := openStream(t, sseHandler(t, []string{payload}))

	ev := nextEvent(t, stream)
	if ev.Outcome != model.SettlementWaiting {
		t.Fatalf("want waiting, got %s", ev.Outcome)
	}
	if ev.QRPayload != "qr-1" {
		t.Fatalf("want replayed qr, got %q", ev.QRPayload)
	}
	if ev.Receiver == nil || ev.Receiver.AccountNumber != "0011" {
		t.Fatalf("want receiver, got %+v", ev.Receiver)
	}
	if ev.TxnCode != "TXN-1" {
		t.Fatalf("want txn code from transfer content, got %q", ev.TxnCode)
	}
}

func TestSettlementStream_EventOrder(t *testing.T) {
	stream := openStream(t, sseHandler(t, []string{
		`{"status":"PROCESSING"}`,
		`{"status":"SUCCESS"}`,
	}))

	if ev := nextEvent(t, stream); ev.Outcome != model.SettlementWaiting {
		t.Fatalf("first event: want waiting, got %s", ev.Outcome)
	}
	if ev := nextEvent(t, stream); ev.Outcome != model.SettlementSucceeded {
		t.Fatalf("second event: want succeeded, got %s", ev.Outcome)
	}
}

func TestSettlementStream_NotFoundResponse(t *testing.T) {
	stream := openStream(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	if ev := nextEvent(t, stream); ev.Outcome != model.SettlementNotFound {
		t.Fatalf("want not found, got %s", ev.Outcome)
	}
}

func TestSettlementStream_CloseIsIdempotent(t *testing.T) {
	stream := openStream(t, sseHandler(t, []string{`{"status":"PROCESSING"}`}))
	_ = nextEvent(t, stream)

	stream.Close()
	stream.Close() // second close must be a no-op

	select {
	case _, ok := <-stream.Events():
		if ok {
			// Draining a buffered event is fine; the channel has to
			// close shortly after.
			select {
			case _, ok2 := <-stream.Events():
				if ok2 {
					t.Fatal("events channel still open after close")
				}
			case <-time.After(2 * time.Second):
				t.Fatal("events channel not closed")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
}

func TestSettlementStream_ReconnectsAfterDrop(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if hits == 1 {
			// Drop the first connection immediately.
			return
		}
		fmt.Fprint(w, "data: {\"status\":\"SUCCESS\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	gw := billing.NewGateway(srv.URL, srv.URL, 5*time.Second, &staticTokens{token: "tok"}, newTestLogger())
	stream, err := gw.OpenSettlementStream(context.Background(), "txn-1")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(stream.Close)

	select {
	case ev := <-stream.Events():
		if ev.Outcome != model.SettlementSucceeded {
			t.Fatalf("want succeeded after reconnect, got %s", ev.Outcome)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("stream did not recover from the dropped connection")
	}
}
