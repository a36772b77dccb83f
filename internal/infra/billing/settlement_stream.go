// File: internal/infra/billing/settlement_stream.go
package billing

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salesops-console/internal/domain/model"
	"salesops-console/internal/domain/ports/adapter"
)

var _ adapter.SettlementStreamOpener = (*Gateway)(nil)

// reconnectDelay between transport-level retries. The backend replays the
// current transaction state on every connect, so a dropped connection loses
// nothing.
const reconnectDelay = 2 * time.Second

type settlementStream struct {
	events chan adapter.SettlementEvent
	cancel context.CancelFunc
	once   sync.Once
}

func (s *settlementStream) Events() <-chan adapter.SettlementEvent { return s.events }

// Close is idempotent; it stops the reader goroutine which in turn closes
// the events channel.
func (s *settlementStream) Close() { s.once.Do(s.cancel) }

// OpenSettlementStream subscribes to the public transaction stream for one
// txn id. The subscription is unauthenticated; the URL is parameterized
// only by the transaction id.
func (g *Gateway) OpenSettlementStream(ctx context.Context, txnID string) (adapter.SettlementStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &settlementStream{
		events: make(chan adapter.SettlementEvent, 8),
		cancel: cancel,
	}
	url := g.managerURL + "/public/transaction/read_txn?txn_id=" + txnID
	go s.run(ctx, g.client, url, g.log)
	return s, nil
}

func (s *settlementStream) run(ctx context.Context, client *http.Client, url string, log *zerolog.Logger) {
	defer close(s.events)
	for {
		if err := s.consume(ctx, client, url); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("url", url).Msg("settlement stream dropped, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *settlementStream) consume(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The stream is long-lived; the gateway's per-RPC timeout must not
	// apply here.
	streamClient := &http.Client{Transport: client.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		s.emit(ctx, adapter.SettlementEvent{Outcome: model.SettlementNotFound})
		<-ctx.Done()
		return nil
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		ev, ok := decodeSettlementEvent([]byte(payload))
		if !ok {
			continue
		}
		s.emit(ctx, ev)
	}
	return scanner.Err()
}

func (s *settlementStream) emit(ctx context.Context, ev adapter.SettlementEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// settlementPayload mirrors the stream message shape. Success is signalled
// by any of status/success/txn_status; failure by FAILED or CANCELLED.
type settlementPayload struct {
	Error     string `json:"error"`
	Status    string `json:"status"`
	TxnStatus string `json:"txn_status"`
	Success   bool   `json:"success"`
	TxnID     string `json:"txn_id"`
	TxnData   struct {
		Meta struct {
			MerchantTxn *struct {
				QrCode   string `json:"qr_code"`
				Receiver *struct {
					AccountNumber      string `json:"account_number"`
					AccountName        string `json:"account_name"`
					BankName           string `json:"bank_name"`
					TransactionContent string `json:"transaction_content"`
				} `json:"receiver"`
			} `json:"merchant_txn"`
		} `json:"meta"`
	} `json:"txn_data"`
}

func decodeSettlementEvent(b []byte) (adapter.SettlementEvent, bool) {
	var p settlementPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return adapter.SettlementEvent{}, false
	}
	ev := adapter.SettlementEvent{Outcome: model.SettlementWaiting, TxnCode: p.TxnID}

	if mt := p.TxnData.Meta.MerchantTxn; mt != nil {
		ev.QRPayload = mt.QrCode
		if r := mt.Receiver; r != nil {
			ev.Receiver = &model.BankAccount{
				AccountNumber: r.AccountNumber,
				AccountName:   r.AccountName,
				BankName:      r.BankName,
				Content:       r.TransactionContent,
			}
			if r.TransactionContent != "" {
				ev.TxnCode = r.TransactionContent
			}
		}
	}

	switch {
	case p.Error == "TXN_NOT_FOUND":
		ev.Outcome = model.SettlementNotFound
	case p.Status == "SUCCESS" || p.TxnStatus == "SUCCESS" || p.Success:
		ev.Outcome = model.SettlementSucceeded
	case p.Status == "FAILED" || p.TxnStatus == "FAILED" || p.Status == "CANCELLED":
		ev.Outcome = model.SettlementFailed
	}
	return ev, true
}
