package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"

	"retail-sim-lab/internal/catalog"
	"retail-sim-lab/internal/config"
	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/observability"
	"retail-sim-lab/internal/sales"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// previewFrame is one message of a preview stream. The first frame carries
// the catalog, each following frame one simulated day, and the last frame
// the record total.
type previewFrame struct {
	Products []domain.Product    `json:"products,omitempty"`
	Day      string              `json:"day,omitempty"`
	Records  []domain.SaleRecord `json:"records,omitempty"`
	Done     bool                `json:"done,omitempty"`
	Total    int                 `json:"total,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// previewConfig builds a generation config from query parameters. start and
// end are required; products, probability and seed fall back to the stock
// defaults.
func previewConfig(q url.Values) (*config.Config, error) {
	cfg := config.Default()
	cfg.Baseline.DateStart = q.Get("start")
	cfg.Baseline.DateEnd = q.Get("end")

	if v := q.Get("products"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: products %q must be an integer", domain.ErrInvalidParameter, v)
		}
		cfg.Baseline.NumProducts = n
	}
	if v := q.Get("probability"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: probability %q must be a number", domain.ErrInvalidParameter, v)
		}
		cfg.Baseline.SaleProbability = p
	}
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: seed %q must be an integer", domain.ErrInvalidParameter, v)
		}
		cfg.Seed = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// handlePreview streams a generated dataset day by day over a WebSocket
// without persisting anything. Parameters are validated before the upgrade
// so bad requests fail the handshake with a plain HTTP error.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	cfg, err := previewConfig(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	start, end, err := cfg.Baseline.DateRange()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	products, err := catalog.Generate(cfg.Baseline.NumProducts, cfg.Seed)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	observability.WSStreamOpened()
	defer observability.WSStreamClosed()

	if err := conn.WriteJSON(previewFrame{Products: products}); err != nil {
		s.logger.Printf("preview stream: %v", err)
		return
	}

	total := 0
	err = sales.ForEachDay(products, start, end, cfg.Baseline.SaleProbability, cfg.Seed,
		func(day domain.Date, records []domain.SaleRecord) error {
			if err := r.Context().Err(); err != nil {
				return err
			}
			total += len(records)
			return conn.WriteJSON(previewFrame{Day: day.String(), Records: records})
		})
	if err != nil {
		s.logger.Printf("preview stream: %v", err)
		conn.WriteJSON(previewFrame{Error: err.Error()})
		return
	}

	conn.WriteJSON(previewFrame{Done: true, Total: total})
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
