package usecase

import (
	"time"

	"replay-proxy/internal/domain"
)

// Dumper is a message that can project itself for the stats log.
type Dumper interface {
	Dump() domain.MessageDump
}

// RequestContext accumulates what the pipeline learned about one client request.
// Messages that never existed must be left as nil interfaces.
type RequestContext struct {
	Endpoint         domain.Endpoint
	RequestKey       string
	RequestStartTime time.Time

	ClientRequest    Dumper
	ProxyRequest     Dumper
	ProxyResponse    Dumper
	PlaybackResponse Dumper
	ClientResponse   Dumper

	FlagRecorded  bool
	FlagForwarded bool
	FlagReplayed  bool
	FlagCacheMiss bool
}

func snapshot(d Dumper) *domain.MessageDump {
	if d == nil {
		return nil
	}
	out := d.Dump()
	return &out
}
