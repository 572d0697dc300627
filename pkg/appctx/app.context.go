// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package appctx

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"thermod/pkg/logger"
)

// Signals carries the channels a daemon selects on for out-of-band control,
// separate from the root context's cancellation.
type Signals struct {
	Reload      <-chan struct{} // SIGHUP
	ToggleDebug <-chan struct{} // SIGUSR1
}

// New returns a context that is canceled when an OS signal (SIGINT or
// SIGTERM) is received, plus a Signals struct for SIGHUP/SIGUSR1 which do not
// cancel the context. Handlers only forward the signal; any real work happens
// in the caller's select loop.
func New() (context.Context, context.CancelFunc, *Signals) {
	ctx, cancel := context.WithCancel(context.Background())
	log := logger.New("SigHandler")

	term := make(chan os.Signal, 1)
	signal.Notify(term, syscall.SIGINT, syscall.SIGTERM)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)

	reload := make(chan struct{}, 1)
	toggleDebug := make(chan struct{}, 1)

	go func() {
		sig := <-term
		log.Info("received signal: %s, shutting down", sig)
		cancel()
	}()

	go func() {
		for range hup {
			log.Info("received SIGHUP, requesting reload")
			select {
			case reload <- struct{}{}:
			default:
			}
		}
	}()

	go func() {
		for range usr1 {
			log.Info("received SIGUSR1, requesting debug toggle")
			select {
			case toggleDebug <- struct{}{}:
			default:
			}
		}
	}()

	return ctx, cancel, &Signals{Reload: reload, ToggleDebug: toggleDebug}
}
