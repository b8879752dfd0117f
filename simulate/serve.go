package simulate

import (
	"errors"
	"io"
	"time"
)

// Serve 在读写流上运行模拟设备，直到输入结束或设备执行退出命令
func Serve(d *Device, rw io.ReadWriter) error {
	if _, err := io.WriteString(rw, d.Banner()); err != nil {
		return err
	}
	buf := make([]byte, 1024)
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			for _, reply := range d.Feed(buf[:n]) {
				if reply.Delay > 0 {
					time.Sleep(reply.Delay)
				}
				if reply.Exit {
					return nil
				}
				if reply.Text == "" {
					continue
				}
				if _, werr := io.WriteString(rw, reply.Text); werr != nil {
					return werr
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
