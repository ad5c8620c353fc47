//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/nnue/internal/tensor"
)

// workgroupSize is the number of invocations per workgroup in every shader.
const workgroupSize = 256

// maxWorkgroupsPerDim is the WebGPU limit on workgroups along one dimension.
const maxWorkgroupsPerDim = 65535

const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// argKind says how a kernel argument moves between host and device.
type argKind int

const (
	argIn    argKind = iota // uploaded, read only
	argInOut                // uploaded and downloaded (accumulators)
	argOut                  // downloaded only, every element is written
)

// arg binds one host slice to a storage binding. Bindings are numbered in
// argument order; the uniform parameter block follows the last one.
type arg struct {
	kind argKind
	data []byte
	dst  []float32
}

func input(data []float32) arg      { return arg{kind: argIn, data: floatBytes(data)} }
func inputInts(data []int32) arg    { return arg{kind: argIn, data: intBytes(data)} }
func accumulate(data []float32) arg { return arg{kind: argInOut, data: floatBytes(data), dst: data} }
func output(data []float32) arg     { return arg{kind: argOut, dst: data} }

// byteSize is the binding size, at least one element since WebGPU rejects
// empty bindings.
func (a arg) byteSize() uint64 {
	n := max(len(a.dst), len(a.data)/4, 1)
	return uint64(4 * n)
}

// floatBytes views a float32 slice as bytes without copying.
func floatBytes(data []float32) []byte {
	if len(data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion of a float32 slice
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), 4*len(data))
}

func intBytes(data []int32) []byte {
	if len(data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion of an int32 slice
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), 4*len(data))
}

// uniforms packs a 16-byte aligned uniform block of 32-bit fields.
type uniforms []byte

func (u uniforms) u32(v int) uniforms {
	//nolint:gosec // G115: sizes are validated non-negative and below 2^32
	return binary.LittleEndian.AppendUint32(u, uint32(v))
}

func (u uniforms) f32(v float32) uniforms {
	return binary.LittleEndian.AppendUint32(u, math.Float32bits(v))
}

func (u uniforms) bytes() []byte {
	size := (len(u) + 15) &^ 15
	if size == 0 {
		size = 16
	}
	padded := make([]byte, size)
	copy(padded, u)
	return padded
}

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Backend's shaders map.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (b *Backend) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	// Auto layout (nil layout)
	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()

	return pipeline
}

// createBuffer creates a storage buffer holding data.
func (b *Backend) createBuffer(data []byte, size uint64) *wgpu.Buffer {
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            storageUsage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	n := copy(mappedSlice, data)
	clear(mappedSlice[n:])
	buffer.Unmap()

	return buffer
}

// createUniformBuffer creates a uniform buffer from a 16-byte aligned block.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mappedPtr), size), data)
	buffer.Unmap()

	return buffer
}

// readBuffer copies size bytes of src into dst through a pooled staging buffer.
func (b *Backend) readBuffer(src *wgpu.Buffer, size uint64, dst []float32) error {
	usage := wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
	staging := b.bufferPool.Acquire(size, usage)
	defer b.bufferPool.Release(staging, size, usage)

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	b.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return fmt.Errorf("webgpu: failed to map staging buffer: %w: %w", tensor.ErrDevice, err)
	}
	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(floatBytes(dst), unsafe.Slice((*byte)(mappedPtr), size))
	staging.Unmap()
	return nil
}

// dispatch runs one compute pass of shader name over threads invocations and
// downloads every argInOut and argOut argument. Device panics surface as
// tensor.ErrDevice.
func (b *Backend) dispatch(name, code string, threads int, params uniforms, args ...arg) (err error) {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()
	if b.released {
		return fmt.Errorf("webgpu: %s: %w", name, tensor.ErrBackendReleased)
	}
	if threads == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("webgpu: %s: %v: %w", name, r, tensor.ErrDevice)
		}
	}()

	pipeline := b.getOrCreatePipeline(name, b.compileShader(name, code))

	buffers := make([]*wgpu.Buffer, len(args))
	entries := make([]wgpu.BindGroupEntry, 0, len(args)+1)
	for i, a := range args {
		size := a.byteSize()
		if a.kind == argOut {
			buffers[i] = b.bufferPool.Acquire(size, storageUsage)
			defer b.bufferPool.Release(buffers[i], size, storageUsage)
		} else {
			buffers[i] = b.createBuffer(a.data, size)
			defer buffers[i].Release()
		}
		//nolint:gosec // G115: binding indices are small
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), buffers[i], 0, size))
	}

	block := params.bytes()
	bufferParams := b.createUniformBuffer(block)
	defer bufferParams.Release()
	//nolint:gosec // G115: binding indices are small
	entries = append(entries, wgpu.BufferBindingEntry(uint32(len(args)), bufferParams, 0, uint64(len(block))))

	bindGroup := b.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	x, y := workgroups(threads)
	computePass.DispatchWorkgroups(x, y, 1)
	computePass.End()
	b.queue.Submit(encoder.Finish(nil))

	for i, a := range args {
		if a.kind == argIn || len(a.dst) == 0 {
			continue
		}
		if err := b.readBuffer(buffers[i], uint64(4*len(a.dst)), a.dst); err != nil {
			return err
		}
	}
	return nil
}

// workgroups spreads threads over a 2D grid when one dimension is not enough.
// Shaders flatten the grid as gid.x + gid.y * nwg.x * workgroupSize.
func workgroups(threads int) (x, y uint32) {
	groups := (threads + workgroupSize - 1) / workgroupSize
	if groups <= maxWorkgroupsPerDim {
		//nolint:gosec // G115: bounded by maxWorkgroupsPerDim
		return uint32(groups), 1
	}
	rows := (groups + maxWorkgroupsPerDim - 1) / maxWorkgroupsPerDim
	//nolint:gosec // G115: bounded by maxWorkgroupsPerDim
	return maxWorkgroupsPerDim, uint32(rows)
}
