package render

import (
	"fmt"
	"io"
	"sync"
)

// frameSink 把乱序完成的帧排成严格递增的输出流。每帧一个槽位，
// worker 完成即登记；写出方逐槽等待，绝不越位读取后续槽。
type frameSink struct {
	mu     sync.Mutex
	cond   *sync.Cond
	slots  []frameSlot
	closed bool
}

type frameSlot struct {
	data  []byte
	ready bool
}

func newFrameSink(frames int) *frameSink {
	s := &frameSink{slots: make([]frameSlot, frames)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// publish 登记一帧的编码结果。序号越界时忽略。
func (s *frameSink) publish(index int, data []byte) {
	if index < 0 || index >= len(s.slots) {
		return
	}
	s.mu.Lock()
	s.slots[index] = frameSlot{data: data, ready: true}
	s.mu.Unlock()
	s.cond.Broadcast()
}

// close 在全部 worker 退出后调用。此后仍未就绪的槽位视为失败帧，
// 写出方跳过它们并继续，保证流不会卡死。
func (s *frameSink) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// drain 按帧序把就绪帧写入 w，返回写出帧数。必须与 publish 并发使用：
// 先写出已就绪的前缀，后续帧就绪一帧写一帧。
func (s *frameSink) drain(w io.Writer) (int, error) {
	written := 0
	for i := range s.slots {
		data, ok := s.wait(i)
		if !ok {
			continue
		}
		if _, err := w.Write(data); err != nil {
			return written, fmt.Errorf("render: 写出第 %d 帧失败: %w", i, err)
		}
		written++
		s.release(i)
	}
	return written, nil
}

// wait 阻塞到第 i 帧就绪或 sink 关闭。关闭后仍未就绪返回 false。
func (s *frameSink) wait(i int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.slots[i].ready && !s.closed {
		s.cond.Wait()
	}
	if !s.slots[i].ready {
		return nil, false
	}
	return s.slots[i].data, true
}

// release 释放已写出帧的内存，整段动画不必同时驻留。
func (s *frameSink) release(i int) {
	s.mu.Lock()
	s.slots[i].data = nil
	s.mu.Unlock()
}
