package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// Stash keeps messages received in a busy state so they can be replayed,
// preserving the original sender, once the actor is ready again.
type Stash struct {
	elems []stashElem
}

type stashElem struct {
	msg    any
	sender *actor.PID
}

func (s *Stash) Stash(ctx actor.Context, msg any) {
	s.elems = append(s.elems, stashElem{
		msg:    msg,
		sender: ctx.Sender(),
	})
}

func (s *Stash) Len() int {
	return len(s.elems)
}

func (s *Stash) UnstashAll(ctx actor.Context) {
	elems := s.elems
	s.elems = nil
	for _, elem := range elems {
		ctx.RequestWithCustomSender(ctx.Self(), elem.msg, elem.sender)
	}
}

func (s *Stash) UnstashOldest(ctx actor.Context) {
	if len(s.elems) == 0 {
		return
	}
	first := s.elems[0]
	s.elems = s.elems[1:]
	ctx.RequestWithCustomSender(ctx.Self(), first.msg, first.sender)
}
