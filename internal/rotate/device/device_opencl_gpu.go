//go:build gpu

package device

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdlib.h>

static const char* rotatebatch_device_error_string(cl_int status) {
	switch (status) {
	case CL_SUCCESS: return "CL_SUCCESS";
	case CL_DEVICE_NOT_AVAILABLE: return "CL_DEVICE_NOT_AVAILABLE";
	case CL_MEM_OBJECT_ALLOCATION_FAILURE: return "CL_MEM_OBJECT_ALLOCATION_FAILURE";
	case CL_OUT_OF_RESOURCES: return "CL_OUT_OF_RESOURCES";
	case CL_OUT_OF_HOST_MEMORY: return "CL_OUT_OF_HOST_MEMORY";
	case CL_BUILD_PROGRAM_FAILURE: return "CL_BUILD_PROGRAM_FAILURE";
	case CL_INVALID_VALUE: return "CL_INVALID_VALUE";
	case CL_INVALID_CONTEXT: return "CL_INVALID_CONTEXT";
	case CL_INVALID_COMMAND_QUEUE: return "CL_INVALID_COMMAND_QUEUE";
	case CL_INVALID_MEM_OBJECT: return "CL_INVALID_MEM_OBJECT";
	case CL_INVALID_BUFFER_SIZE: return "CL_INVALID_BUFFER_SIZE";
	case CL_INVALID_KERNEL_NAME: return "CL_INVALID_KERNEL_NAME";
	case CL_INVALID_KERNEL: return "CL_INVALID_KERNEL";
	case CL_INVALID_ARG_INDEX: return "CL_INVALID_ARG_INDEX";
	case CL_INVALID_ARG_VALUE: return "CL_INVALID_ARG_VALUE";
	case CL_INVALID_ARG_SIZE: return "CL_INVALID_ARG_SIZE";
	case CL_INVALID_KERNEL_ARGS: return "CL_INVALID_KERNEL_ARGS";
	case CL_INVALID_WORK_DIMENSION: return "CL_INVALID_WORK_DIMENSION";
	case CL_INVALID_WORK_GROUP_SIZE: return "CL_INVALID_WORK_GROUP_SIZE";
	case CL_INVALID_OPERATION: return "CL_INVALID_OPERATION";
	default: return "CL_UNKNOWN_ERROR";
	}
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"math"
	"unsafe"

	"github.com/cwbudde/rotatebatch/internal/rotate"
	"github.com/cwbudde/rotatebatch/internal/rotate/gpu"
)

const openclRotateSource = `
__kernel void rotate_u8(
    __global const uchar *src, const int srcPitch,
    const int srcX, const int srcY, const int srcW, const int srcH,
    __global uchar *dst, const int dstPitch,
    const int dstX, const int dstY, const int dstW, const int dstH,
    const float sinT, const float cosT,
    const float pivotX, const float pivotY,
    const float shiftX, const float shiftY,
    const int linear) {

    const int dx = dstX + get_global_id(0);
    const int dy = dstY + get_global_id(1);
    if (dx >= dstX + dstW || dy >= dstY + dstH) {
        return;
    }

    const float rx = (float)dx + 0.5f - shiftX - pivotX;
    const float ry = (float)dy + 0.5f - shiftY - pivotY;
    const float sx = cosT * rx + sinT * ry + pivotX;
    const float sy = -sinT * rx + cosT * ry + pivotY;

    const int ix = (int)floor(sx);
    const int iy = (int)floor(sy);
    if (ix < srcX || iy < srcY || ix >= srcX + srcW || iy >= srcY + srcH) {
        return;
    }

    if (!linear) {
        dst[dy * dstPitch + dx] = src[iy * srcPitch + ix];
        return;
    }

    const float fx = sx - 0.5f;
    const float fy = sy - 0.5f;
    const float x0f = floor(fx);
    const float y0f = floor(fy);
    const float wx = fx - x0f;
    const float wy = fy - y0f;

    const int ax = clamp((int)x0f, srcX, srcX + srcW - 1);
    const int bx = clamp((int)x0f + 1, srcX, srcX + srcW - 1);
    const int ay = clamp((int)y0f, srcY, srcY + srcH - 1);
    const int by = clamp((int)y0f + 1, srcY, srcY + srcH - 1);

    const float p00 = (float)src[ay * srcPitch + ax];
    const float p01 = (float)src[ay * srcPitch + bx];
    const float p10 = (float)src[by * srcPitch + ax];
    const float p11 = (float)src[by * srcPitch + bx];

    const float top = p00 + (p01 - p00) * wx;
    const float bottom = p10 + (p11 - p10) * wx;
    dst[dy * dstPitch + dx] = (uchar)(top + (bottom - top) * wy + 0.5f);
}
`

type clBuffer struct {
	width, height, pitch int
	mem                  C.cl_mem
	released             bool
}

func (b *clBuffer) Width() int  { return b.width }
func (b *clBuffer) Height() int { return b.height }
func (b *clBuffer) Pitch() int  { return b.pitch }

type openCLDevice struct {
	runtime *gpu.Runtime

	context C.cl_context
	queue   C.cl_command_queue
	device  C.cl_device_id
	program C.cl_program
	kernel  C.cl_kernel
}

// newOpenCLDevice initialises the OpenCL runtime and builds the rotate
// kernel. The returned cleanup releases the kernel, program and runtime.
func newOpenCLDevice() (rotate.Device, func(), error) {
	rt, err := gpu.InitOpenCL()
	if err != nil {
		return nil, noopCleanup, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	d := &openCLDevice{runtime: rt}
	if err := d.init(); err != nil {
		d.Close()
		return nil, noopCleanup, err
	}

	slog.Info("OpenCL backend initialised",
		"device", rt.Device.Name,
		"vendor", rt.Device.Vendor,
		"compute_units", rt.Device.MaxComputeUnits,
	)

	return d, d.Close, nil
}

func (d *openCLDevice) init() error {
	d.context = C.cl_context(d.runtime.ContextPtr())
	d.queue = C.cl_command_queue(d.runtime.QueuePtr())
	d.device = C.cl_device_id(d.runtime.DevicePtr())

	if d.context == nil || d.queue == nil {
		return fmt.Errorf("%w: failed to access OpenCL context/queue", ErrBackendUnavailable)
	}

	source := C.CString(openclRotateSource)
	defer C.free(unsafe.Pointer(source))

	var status C.cl_int
	d.program = C.clCreateProgramWithSource(d.context, 1, &source, nil, &status)
	if status != C.CL_SUCCESS {
		return clError("clCreateProgramWithSource", status)
	}

	status = C.clBuildProgram(d.program, 1, &d.device, nil, nil, nil)
	if status != C.CL_SUCCESS {
		d.dumpBuildLog()
		return clError("clBuildProgram", status)
	}

	kernelName := C.CString("rotate_u8")
	defer C.free(unsafe.Pointer(kernelName))
	d.kernel = C.clCreateKernel(d.program, kernelName, &status)
	if status != C.CL_SUCCESS {
		return clError("clCreateKernel", status)
	}

	return nil
}

func (d *openCLDevice) dumpBuildLog() {
	if d.program == nil || d.device == nil {
		return
	}

	var logSize C.size_t
	if status := C.clGetProgramBuildInfo(d.program, d.device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &logSize); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log size", "err", int(status))
		return
	}
	if logSize == 0 {
		return
	}

	buf := make([]byte, int(logSize))
	if status := C.clGetProgramBuildInfo(d.program, d.device, C.CL_PROGRAM_BUILD_LOG, logSize, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log", "err", int(status))
		return
	}

	slog.Error("OpenCL build log", "log", string(buf))
}

func (d *openCLDevice) Name() string {
	return string(BackendOpenCL)
}

func (d *openCLDevice) Alloc(width, height int) (rotate.Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid buffer size %dx%d", width, height)
	}

	pitch := (width + pitchAlign - 1) / pitchAlign * pitchAlign

	var status C.cl_int
	mem := C.clCreateBuffer(d.context, C.CL_MEM_READ_WRITE, C.size_t(pitch*height), nil, &status)
	if status != C.CL_SUCCESS {
		return nil, clError("clCreateBuffer", status)
	}

	buf := &clBuffer{width: width, height: height, pitch: pitch, mem: mem}

	// Device buffers carry no allocation-time contents; fill with the
	// background value so untouched destination pixels are deterministic.
	var zero C.cl_uchar
	status = C.clEnqueueFillBuffer(d.queue, mem, unsafe.Pointer(&zero), 1, 0, C.size_t(pitch*height), 0, nil, nil)
	if status != C.CL_SUCCESS {
		d.Release(buf)
		return nil, clError("clEnqueueFillBuffer", status)
	}
	if status = C.clFinish(d.queue); status != C.CL_SUCCESS {
		d.Release(buf)
		return nil, clError("clFinish(fill)", status)
	}

	return buf, nil
}

func (d *openCLDevice) Upload(img *rotate.Image) (rotate.Buffer, error) {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("invalid host image")
	}

	buf, err := d.Alloc(img.Width, img.Height)
	if err != nil {
		return nil, err
	}
	b := buf.(*clBuffer)

	// Repack the host rows into a pitch-aligned staging buffer so a single
	// blocking write covers the whole transfer.
	staging := make([]uint8, b.pitch*b.height)
	for y := 0; y < img.Height; y++ {
		copy(staging[y*b.pitch:y*b.pitch+img.Width], img.Pix[y*img.Stride:y*img.Stride+img.Width])
	}

	status := C.clEnqueueWriteBuffer(d.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(staging)), unsafe.Pointer(&staging[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		d.Release(b)
		return nil, clError("clEnqueueWriteBuffer", status)
	}

	return b, nil
}

func (d *openCLDevice) Download(buf rotate.Buffer) (*rotate.Image, error) {
	b, err := d.own(buf)
	if err != nil {
		return nil, err
	}

	staging := make([]uint8, b.pitch*b.height)
	status := C.clEnqueueReadBuffer(d.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(staging)), unsafe.Pointer(&staging[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return nil, clError("clEnqueueReadBuffer", status)
	}

	img := rotate.NewImage(b.width, b.height)
	for y := 0; y < b.height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+b.width], staging[y*b.pitch:y*b.pitch+b.width])
	}
	return img, nil
}

func (d *openCLDevice) Release(buf rotate.Buffer) {
	b, ok := buf.(*clBuffer)
	if !ok || b == nil || b.released {
		return
	}
	b.released = true
	if b.mem != nil {
		C.clReleaseMemObject(b.mem)
		b.mem = nil
	}
}

func (d *openCLDevice) Rotate(src rotate.Buffer, srcROI rotate.Region, dst rotate.Buffer, dstROI rotate.Region, angleDeg float64, center rotate.Point, interp rotate.Interp) error {
	sb, err := d.own(src)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	db, err := d.own(dst)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if srcROI.Empty() || dstROI.Empty() {
		return fmt.Errorf("empty region")
	}
	if srcROI.X < 0 || srcROI.Y < 0 || srcROI.X+srcROI.Width > sb.width || srcROI.Y+srcROI.Height > sb.height {
		return fmt.Errorf("source region %+v out of bounds for %dx%d buffer", srcROI, sb.width, sb.height)
	}
	if math.IsNaN(angleDeg) || math.IsInf(angleDeg, 0) {
		return fmt.Errorf("non-finite angle")
	}
	if interp != rotate.InterpNearest && interp != rotate.InterpLinear {
		return fmt.Errorf("unsupported interpolation mode %v", interp)
	}

	sin, cos := rotate.SinCosDeg(angleDeg)
	shiftX := float64(dstROI.X) + float64(dstROI.Width)/2 - (float64(srcROI.X) + float64(srcROI.Width)/2)
	shiftY := float64(dstROI.Y) + float64(dstROI.Height)/2 - (float64(srcROI.Y) + float64(srcROI.Height)/2)

	// Clip the written region to the destination buffer.
	roi := dstROI
	if roi.X < 0 {
		roi.Width += roi.X
		roi.X = 0
	}
	if roi.Y < 0 {
		roi.Height += roi.Y
		roi.Y = 0
	}
	if roi.X+roi.Width > db.width {
		roi.Width = db.width - roi.X
	}
	if roi.Y+roi.Height > db.height {
		roi.Height = db.height - roi.Y
	}
	if roi.Empty() {
		return nil
	}

	linear := C.cl_int(0)
	if interp == rotate.InterpLinear {
		linear = 1
	}

	type kernelArg struct {
		size uintptr
		ptr  unsafe.Pointer
	}

	srcPitch := C.cl_int(sb.pitch)
	srcX, srcY := C.cl_int(srcROI.X), C.cl_int(srcROI.Y)
	srcW, srcH := C.cl_int(srcROI.Width), C.cl_int(srcROI.Height)
	dstPitch := C.cl_int(db.pitch)
	dstX, dstY := C.cl_int(roi.X), C.cl_int(roi.Y)
	dstW, dstH := C.cl_int(roi.Width), C.cl_int(roi.Height)
	sinT, cosT := C.cl_float(sin), C.cl_float(cos)
	pivotX, pivotY := C.cl_float(center.X), C.cl_float(center.Y)
	shX, shY := C.cl_float(shiftX), C.cl_float(shiftY)

	kargs := []kernelArg{
		{unsafe.Sizeof(sb.mem), unsafe.Pointer(&sb.mem)},
		{unsafe.Sizeof(srcPitch), unsafe.Pointer(&srcPitch)},
		{unsafe.Sizeof(srcX), unsafe.Pointer(&srcX)},
		{unsafe.Sizeof(srcY), unsafe.Pointer(&srcY)},
		{unsafe.Sizeof(srcW), unsafe.Pointer(&srcW)},
		{unsafe.Sizeof(srcH), unsafe.Pointer(&srcH)},
		{unsafe.Sizeof(db.mem), unsafe.Pointer(&db.mem)},
		{unsafe.Sizeof(dstPitch), unsafe.Pointer(&dstPitch)},
		{unsafe.Sizeof(dstX), unsafe.Pointer(&dstX)},
		{unsafe.Sizeof(dstY), unsafe.Pointer(&dstY)},
		{unsafe.Sizeof(dstW), unsafe.Pointer(&dstW)},
		{unsafe.Sizeof(dstH), unsafe.Pointer(&dstH)},
		{unsafe.Sizeof(sinT), unsafe.Pointer(&sinT)},
		{unsafe.Sizeof(cosT), unsafe.Pointer(&cosT)},
		{unsafe.Sizeof(pivotX), unsafe.Pointer(&pivotX)},
		{unsafe.Sizeof(pivotY), unsafe.Pointer(&pivotY)},
		{unsafe.Sizeof(shX), unsafe.Pointer(&shX)},
		{unsafe.Sizeof(shY), unsafe.Pointer(&shY)},
		{unsafe.Sizeof(linear), unsafe.Pointer(&linear)},
	}

	for i, arg := range kargs {
		if status := C.clSetKernelArg(d.kernel, C.cl_uint(i), C.size_t(arg.size), arg.ptr); status != C.CL_SUCCESS {
			return clError(fmt.Sprintf("clSetKernelArg(%d)", i), status)
		}
	}

	global := [2]C.size_t{C.size_t(roi.Width), C.size_t(roi.Height)}
	status := C.clEnqueueNDRangeKernel(d.queue, d.kernel, 2, nil, &global[0], nil, 0, nil, nil)
	if status != C.CL_SUCCESS {
		return clError("clEnqueueNDRangeKernel", status)
	}

	if status = C.clFinish(d.queue); status != C.CL_SUCCESS {
		return clError("clFinish", status)
	}

	return nil
}

func (d *openCLDevice) Close() {
	if d.kernel != nil {
		C.clReleaseKernel(d.kernel)
		d.kernel = nil
	}
	if d.program != nil {
		C.clReleaseProgram(d.program)
		d.program = nil
	}
	if d.runtime != nil {
		d.runtime.Close()
		d.runtime = nil
	}
}

func (d *openCLDevice) own(buf rotate.Buffer) (*clBuffer, error) {
	b, ok := buf.(*clBuffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("buffer does not belong to the opencl backend")
	}
	if b.released {
		return nil, fmt.Errorf("buffer already released")
	}
	return b, nil
}

func clError(prefix string, status C.cl_int) error {
	return fmt.Errorf("%s: %s (%d)", prefix, C.GoString(C.rotatebatch_device_error_string(status)), int(status))
}
