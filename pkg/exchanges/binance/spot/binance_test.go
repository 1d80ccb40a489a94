package spot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"strategy-core/pkg/exchanges/common"
)

func TestSubmitMarketOrderSignsAndParsesFill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/order" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-MBX-APIKEY") != "key" {
			t.Errorf("missing api key header")
		}
		raw, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(raw))
		if form.Get("type") != "MARKET" || form.Get("side") != "BUY" || form.Get("quantity") != "0.002" {
			t.Errorf("unexpected form %v", form)
		}

		sig := form.Get("signature")
		unsigned := strings.Replace(string(raw), "&signature="+sig, "", 1)
		if sign(unsigned, "secret") != sig {
			t.Errorf("bad signature")
		}

		w.Write([]byte(`{"symbol":"BTCUSDT","orderId":12345,"clientOrderId":"abc","status":"FILLED","executedQty":"0.002","cummulativeQuoteQty":"100.5"}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "key", APISecret: "secret", BaseURL: srv.URL})
	res, err := c.SubmitOrder(context.Background(), common.OrderRequest{
		Symbol: "btcusdt",
		Side:   common.SideBuy,
		Qty:    0.002,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if res.ExchangeOrderID != "12345" || res.Status != common.StatusFilled {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.AvgPrice != 50250 {
		t.Fatalf("AvgPrice=%v, expected 50250", res.AvgPrice)
	}
}

func TestSubmitOrderRequiresCredentials(t *testing.T) {
	c := New(Config{})
	_, err := c.SubmitOrder(context.Background(), common.OrderRequest{Symbol: "BTCUSDT", Side: common.SideSell, Qty: 1})
	if !errors.Is(err, ErrCredentialsRequired) {
		t.Fatalf("expected ErrCredentialsRequired, got %v", err)
	}
}

func TestSubmitOrderExchangeRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance"}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", APISecret: "s", BaseURL: srv.URL})
	_, err := c.SubmitOrder(context.Background(), common.OrderRequest{Symbol: "BTCUSDT", Side: common.SideSell, Qty: 1})
	if err == nil || !strings.Contains(err.Error(), "insufficient balance") {
		t.Fatalf("expected exchange error, got %v", err)
	}
}

func TestSyncTimeUsesServerClock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"serverTime":1700000000000}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if err := c.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}
	if c.timeSync.LastSync().IsZero() {
		t.Fatalf("time sync not recorded")
	}
}
