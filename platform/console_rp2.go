//go:build rp2040 || rp2350

package platform

import (
	"io"
	"machine"
	"sync"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

const consoleBaud = 115200

var consoleOnce sync.Once

// Console returns UART0, configured on first use.
func Console() io.Writer {
	consoleOnce.Do(func() {
		_ = uartx.UART0.Configure(uartx.UARTConfig{
			BaudRate: consoleBaud,
			TX:       machine.UART0_TX_PIN,
			RX:       machine.UART0_RX_PIN,
		})
	})
	return uartx.UART0
}
