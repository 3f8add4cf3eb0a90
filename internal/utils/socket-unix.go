//go:build !windows

package utils

import (
	"syscall"

	"github.com/rs/zerolog/log"
)

// setSocketOptions enlarges kernel buffers for high segment counts.
func setSocketOptions(fd uintptr) {
	for _, opt := range []int{syscall.SO_RCVBUF, syscall.SO_SNDBUF} {
		if err := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, opt, socketBufferSize); err != nil {
			log.Debug().Str("op", "utils/socket").Err(err).Int("opt", opt).Msg("Socket buffer not applied")
		}
	}
}
