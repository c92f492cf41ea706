//go:build linux

package main

import (
	"encoding/binary"
	"fmt"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// readTapEventsEpoll reads from all grabbed devices using a single epoll
// goroutine: the kernel wakes us only when events are available, which keeps
// the per-event path short (the tap must never stall the delivery path).
//
// Each device gets its own frame assembler so modifier state and partial
// frames never mix across devices. Decoded daemon events are sent to the
// events channel in delivery order.
func readTapEventsEpoll(devices []*TapDevice, events chan<- Event, readErr chan<- error) {
	if len(devices) == 0 {
		readErr <- fmt.Errorf("no input devices provided")
		return
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		readErr <- fmt.Errorf("epoll_create1: %w", err)
		return
	}
	defer unix.Close(epfd)

	type devState struct {
		dev       *TapDevice
		assembler *frameAssembler
	}
	fdToDev := make(map[int]*devState)

	for _, d := range devices {
		fd := int(d.File.Fd())
		fdToDev[fd] = &devState{
			dev:       d,
			assembler: newFrameAssembler(d.Continuous),
		}

		event := unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			readErr <- fmt.Errorf("epoll_ctl_add fd=%d: %w", fd, err)
			return
		}
	}

	const maxEvents = 32
	epollEvents := make([]unix.EpollEvent, maxEvents)
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize)

	for {
		n, err := unix.EpollWait(epfd, epollEvents, -1)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			readErr <- fmt.Errorf("epoll_wait: %w", err)
			return
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			ds := fdToDev[fd]

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				// A grabbed device going away (unplug) is fatal:
				// the tap cannot be re-established without user
				// action.
				readErr <- fmt.Errorf("device error/hangup: %s (fd=%d)", ds.dev.File.Name(), fd)
				return
			}

			if _, err := ds.dev.File.Read(buf); err != nil {
				readErr <- fmt.Errorf("read from %s: %w", ds.dev.File.Name(), err)
				return
			}

			raw, ok := parseInputEvent(buf)
			if !ok {
				// Skip malformed events
				continue
			}

			for _, ev := range ds.assembler.push(raw, time.Now()) {
				events <- ev
			}
		}
	}
}
