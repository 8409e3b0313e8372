package observer

import (
	"cmp"
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"procoin.app/internal/observerproto"
	"procoin.app/internal/sim/catalogs"
	"procoin.app/internal/sim/world"
)

// Server streams read-only market state (store stock, money supply, richest
// users) to dashboards. It never mutates the world.
type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var resp observerproto.BootstrapResponse
		err := s.world.Do(ctx, func(w *world.World) error {
			cfg := w.Tuning()
			resp = observerproto.BootstrapResponse{
				ProtocolVersion: observerproto.Version,
				CurrencySymbol:  catalogs.CurrencySymbol,
				Catalog: observerproto.CatalogInfo{
					Items:   w.Catalog().Len(),
					Recipes: w.Merges().Len(),
					Digest:  w.Catalog().Digest,
				},
				Economy: observerproto.EconomyParams{
					StartingBalance:    cfg.StartingBalance,
					RestockEverySec:    int64(cfg.RestockEvery / time.Second),
					PassiveIncomeSec:   int64(cfg.PassiveIncomePeriod / time.Second),
					OrdinaryStockSlots: cfg.Store.OrdinarySlots,
					BigStockSlots:      cfg.Store.BigSlots,
					CurseScrollItemID:  cfg.Curse.ScrollItemID,
				},
			}
			return nil
		})
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		sub, ok := readSubscribe(conn)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Reader: SUBSCRIBE updates only; anything else is ignored.
		updates := make(chan observerproto.SubscribeMsg, 1)
		_ = conn.SetReadDeadline(time.Time{})
		go func() {
			defer cancel()
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var next observerproto.SubscribeMsg
				if json.Unmarshal(msg, &next) != nil || next.Type != observerproto.TypeSubscribe || next.ProtocolVersion != observerproto.Version {
					continue
				}
				normalizeSubscribe(&next)
				select {
				case updates <- next:
				default:
					// Drop updates under load; the client may resend.
				}
			}
		}()

		ticker := time.NewTicker(time.Duration(sub.IntervalMS) * time.Millisecond)
		defer ticker.Stop()
	loop:
		for seq := uint64(1); ; seq++ {
			if err := s.send(ctx, conn, seq, sub.TopN); err != nil {
				if ctx.Err() == nil {
					s.log.Printf("observer: %v", err)
				}
				break
			}
			select {
			case <-ctx.Done():
				break loop
			case next := <-updates:
				sub = next
				ticker.Reset(time.Duration(sub.IntervalMS) * time.Millisecond)
			case <-ticker.C:
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, seq uint64, topN int) error {
	qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var msg observerproto.MarketMsg
	if err := s.world.Do(qctx, func(w *world.World) error {
		msg = buildMarket(w, topN)
		return nil
	}); err != nil {
		return err
	}
	msg.Seq = seq
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// buildMarket runs on the world loop.
func buildMarket(w *world.World, topN int) observerproto.MarketMsg {
	msg := observerproto.MarketMsg{
		Type:            observerproto.TypeMarket,
		ProtocolVersion: observerproto.Version,
		AtUnixMS:        time.Now().UnixMilli(),
		LastRestockUnix: w.Store().LastRestock().Unix(),
		Users:           w.Ledger().Len(),
	}
	for _, e := range w.Store().Entries() {
		msg.Store = append(msg.Store, observerproto.StockState{
			ItemID:  e.Item.ID,
			Display: e.Item.PrefixedName(),
			Cost:    e.Item.Cost,
			Boost:   e.Item.Boost,
			Qty:     e.Qty,
		})
	}
	holders := make([]observerproto.Holder, 0, msg.Users)
	for _, id := range w.Ledger().IDs() {
		u, _ := w.Ledger().Find(id)
		msg.MoneySupply += u.Balance
		holders = append(holders, observerproto.Holder{UserID: id, Balance: u.Balance, Boost: u.Boost()})
	}
	if topN > 0 {
		slices.SortFunc(holders, func(a, b observerproto.Holder) int {
			if a.Balance != b.Balance {
				return cmp.Compare(b.Balance, a.Balance)
			}
			return strings.Compare(a.UserID, b.UserID)
		})
		msg.Top = holders[:min(topN, len(holders))]
	}
	return msg
}

func readSubscribe(conn *websocket.Conn) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return sub, false
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.IntervalMS <= 0 {
		sub.IntervalMS = 1000
	}
	sub.IntervalMS = max(sub.IntervalMS, 100)
	sub.IntervalMS = min(sub.IntervalMS, 60_000)
	sub.TopN = max(sub.TopN, 0)
	sub.TopN = min(sub.TopN, 100)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
