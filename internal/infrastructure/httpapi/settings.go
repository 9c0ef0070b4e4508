package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

type responseDelayDTO struct {
	Enabled bool   `json:"enabled"`
	Value   string `json:"value"` // "1500" or a range "1000-3000"
}

type settingsDTO struct {
	ResponseDelay responseDelayDTO `json:"responseDelay"`
}

// handleSettings reads or updates runtime settings. Only the replay delay is supported.
func (d *Deps) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, d.currentSettings())
	case http.MethodPost:
		var in settingsDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid json", nil)
			return
		}
		rd := in.ResponseDelay
		v := strings.TrimSpace(rd.Value)
		if !rd.Enabled || v == "" || v == "0" {
			d.Delay.Set(0, 0, 0)
		} else if lo, hi, ok := strings.Cut(v, "-"); ok {
			min, err1 := strconv.Atoi(strings.TrimSpace(lo))
			max, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || min < 0 || max < 0 {
				writeError(w, http.StatusBadRequest, "BAD_VALUE", "value must be number or range like 1000-3000", nil)
				return
			}
			d.Delay.Set(0, min, max)
		} else {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "BAD_VALUE", "value must be non-negative integer or range", nil)
				return
			}
			d.Delay.Set(n, 0, 0)
		}
		writeJSON(w, http.StatusOK, d.currentSettings())
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (d *Deps) currentSettings() settingsDTO {
	fixed, min, max := d.Delay.Get()
	cur := settingsDTO{}
	switch {
	case max > 0:
		cur.ResponseDelay = responseDelayDTO{Enabled: true, Value: strconv.Itoa(min) + "-" + strconv.Itoa(max)}
	case fixed > 0:
		cur.ResponseDelay = responseDelayDTO{Enabled: true, Value: strconv.Itoa(fixed)}
	}
	return cur
}
