package gpu

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

func TestNewContextNoopBackend(t *testing.T) {
	c, err := NewContext(WithBackend(&noop.API{}), WithFenceTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer c.Destroy()

	if c.Device() == nil || c.Queue() == nil {
		t.Fatal("expected device and queue")
	}
	if c.FenceTimeout() != time.Second {
		t.Errorf("FenceTimeout = %v, want 1s", c.FenceTimeout())
	}
	if c.PipelineCache() == nil {
		t.Error("expected pipeline cache")
	}

	c.Destroy()
	if c.Device() != nil {
		t.Error("Destroy should release the device")
	}
	// Double-destroy should be safe.
	c.Destroy()
}

func TestSelectAdapter(t *testing.T) {
	const featureA = gputypes.Features(1 << 0)

	var integrated, discrete, discreteNoA hal.ExposedAdapter
	integrated.Info.Name = "integrated"
	integrated.Info.DeviceType = gputypes.DeviceTypeIntegratedGPU
	integrated.Features = featureA
	discrete.Info.Name = "discrete"
	discrete.Info.DeviceType = gputypes.DeviceTypeDiscreteGPU
	discrete.Features = featureA
	discreteNoA.Info.Name = "discrete-no-a"
	discreteNoA.Info.DeviceType = gputypes.DeviceTypeDiscreteGPU

	tests := []struct {
		name     string
		adapters []hal.ExposedAdapter
		required gputypes.Features
		want     string
	}{
		{"discrete preferred", []hal.ExposedAdapter{integrated, discrete}, 0, "discrete"},
		{"first of equals", []hal.ExposedAdapter{discreteNoA, discrete}, 0, "discrete-no-a"},
		{"missing feature rejected", []hal.ExposedAdapter{discreteNoA, integrated}, featureA, "integrated"},
		{"none qualifies", []hal.ExposedAdapter{discreteNoA}, featureA, ""},
		{"empty", nil, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectAdapter(tt.adapters, tt.required)
			if tt.want == "" {
				if got != nil {
					t.Errorf("selectAdapter = %q, want nil", got.Info.Name)
				}
				return
			}
			if got == nil || got.Info.Name != tt.want {
				t.Errorf("selectAdapter = %v, want %q", got, tt.want)
			}
		})
	}
}

// Mocks satisfying gpucontext.DeviceProvider.
type mockDevice struct{}

func (m *mockDevice) Poll(wait bool) {}
func (m *mockDevice) Destroy()       {}

type mockQueue struct{}

type mockAdapter struct{}

type mockProvider struct {
	format gputypes.TextureFormat
	name   string
}

func (m *mockProvider) Device() gpucontext.Device             { return &mockDevice{} }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return m.format }

func (m *mockProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: m.name, Type: gpucontext.AdapterTypeUnknown}
}

// halMockProvider additionally exposes HAL objects.
type halMockProvider struct {
	mockProvider
	device hal.Device
	queue  hal.Queue
}

func (m *halMockProvider) HalDevice() any { return m.device }
func (m *halMockProvider) HalQueue() any  { return m.queue }

func TestNewContextFromProvider(t *testing.T) {
	device, queue := openNoopDevice(t)

	p := &halMockProvider{
		mockProvider: mockProvider{format: gputypes.TextureFormatBGRA8Unorm, name: "host gpu"},
		device:       device,
		queue:        queue,
	}
	c, err := NewContextFromProvider(p)
	if err != nil {
		t.Fatalf("NewContextFromProvider: %v", err)
	}
	if c.Device() != device {
		t.Error("device not adopted")
	}
	if c.SurfaceFormat() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("SurfaceFormat = %v, want provider format", c.SurfaceFormat())
	}
	if c.AdapterName() != "host gpu" {
		t.Errorf("AdapterName = %q, want provider adapter name", c.AdapterName())
	}

	// External devices survive Destroy; the cleanup registered by
	// openNoopDevice still owns them.
	c.Destroy()
	f, err := device.CreateFence()
	if err != nil {
		t.Fatalf("external device unusable after Context.Destroy: %v", err)
	}
	device.DestroyFence(f)
}

func TestNewContextFromProviderRejectsNonHAL(t *testing.T) {
	_, err := NewContextFromProvider(&mockProvider{})
	if !errors.Is(err, ErrNotHALProvider) {
		t.Errorf("err = %v, want ErrNotHALProvider", err)
	}

	_, err = NewContextFromProvider(&halMockProvider{})
	if !errors.Is(err, ErrNotHALProvider) {
		t.Errorf("nil HAL objects: err = %v, want ErrNotHALProvider", err)
	}
}

func TestSetupCommandBuffer(t *testing.T) {
	c := newNoopContext(t)

	setup, err := c.CreateSetupCommandBuffer("test_setup")
	if err != nil {
		t.Fatalf("CreateSetupCommandBuffer: %v", err)
	}
	if setup.Encoder() == nil {
		t.Fatal("expected encoder")
	}
	if err := c.FlushSetupCommandBuffer(setup); err != nil {
		t.Fatalf("FlushSetupCommandBuffer: %v", err)
	}
	if err := c.FlushSetupCommandBuffer(setup); err == nil {
		t.Error("second flush should fail")
	}
}

func TestSetupCommandBufferTimeout(t *testing.T) {
	device, queue := openNoopDevice(t)
	stuck := &pollQueue{Queue: queue, stuck: true}
	c := newContextOn(t, device, stuck, WithFenceTimeout(20*time.Millisecond))

	setup, err := c.CreateSetupCommandBuffer("stuck_setup")
	if err != nil {
		t.Fatal(err)
	}
	err = c.FlushSetupCommandBuffer(setup)
	if !errors.Is(err, ErrDeviceLost) {
		t.Errorf("err = %v, want ErrDeviceLost", err)
	}
}

func TestSetupCommandBufferSubmitError(t *testing.T) {
	device, queue := openNoopDevice(t)
	boom := errors.New("boom")
	c := newContextOn(t, device, &pollQueue{Queue: queue, submitErr: boom})

	setup, err := c.CreateSetupCommandBuffer("failing_setup")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.FlushSetupCommandBuffer(setup); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestWaitSubmission(t *testing.T) {
	_, queue := openNoopDevice(t)
	index, err := queue.Submit(nil)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("not completed N times", func(t *testing.T) {
		for _, n := range []int{0, 1, 5, 50} {
			q := &pollQueue{Queue: queue, notCompleted: n}
			polls, err := waitSubmission(q, index, time.Second)
			if err != nil {
				t.Fatalf("n=%d: %v", n, err)
			}
			if polls != n+1 || q.polls != n+1 {
				t.Errorf("n=%d: polls=%d queue polls=%d, want %d", n, polls, q.polls, n+1)
			}
		}
	})

	t.Run("older submission", func(t *testing.T) {
		q := &pollQueue{Queue: queue}
		if polls, err := waitSubmission(q, 0, time.Second); err != nil || polls != 1 {
			t.Errorf("polls=%d err=%v, want 1 poll", polls, err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		q := &pollQueue{Queue: queue, stuck: true}
		_, err := waitSubmission(q, index, 10*time.Millisecond)
		if !errors.Is(err, ErrDeviceLost) {
			t.Errorf("err = %v, want ErrDeviceLost", err)
		}
	})

	t.Run("unbounded", func(t *testing.T) {
		q := &pollQueue{Queue: queue, notCompleted: 3}
		if _, err := waitSubmission(q, index, 0); err != nil {
			t.Errorf("unbounded wait: %v", err)
		}
	})
}
