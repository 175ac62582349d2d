package journey

import (
	"context"
	"net/http"

	"github.com/raywall/fast-service-stubber/pkg/domain"
)

// Dispatcher encaminha cada requisição para o Recorder ou o Player conforme
// o estado da jornada capturada no momento da chamada.
type Dispatcher struct {
	machine  *Machine
	recorder *Recorder
	player   *Player
}

func NewDispatcher(machine *Machine, recorder *Recorder, player *Player) *Dispatcher {
	return &Dispatcher{machine: machine, recorder: recorder, player: player}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req *http.Request) (*Reply, error) {
	j := d.machine.Current()
	if j == nil {
		return nil, domain.New(domain.KindNotFound, "not found")
	}

	switch j.State {
	case StateRecording:
		return d.recorder.Record(ctx, j, req)
	case StatePlaying:
		return d.player.Play(ctx, j, req)
	default:
		return nil, domain.New(domain.KindNotFound, "not found")
	}
}
