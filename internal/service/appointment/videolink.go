package appointment

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
)

// LinkGenerator produces meeting URLs for online appointments.
type LinkGenerator interface {
	Generate(appt *model.Appointment) string
}

// RoomLinkGenerator builds unguessable room URLs under a meeting host,
// e.g. https://meet.jit.si/careportal-<uuid>.
type RoomLinkGenerator struct {
	BaseURL string
	Prefix  string
}

func NewRoomLinkGenerator(baseURL, prefix string) *RoomLinkGenerator {
	return &RoomLinkGenerator{BaseURL: strings.TrimRight(baseURL, "/"), Prefix: prefix}
}

func (g *RoomLinkGenerator) Generate(_ *model.Appointment) string {
	room := uuid.NewString()
	if g.Prefix != "" {
		room = g.Prefix + "-" + room
	}
	return fmt.Sprintf("%s/%s", g.BaseURL, room)
}
