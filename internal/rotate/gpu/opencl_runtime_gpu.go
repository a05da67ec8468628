//go:build gpu

package gpu

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>

static const char* rotatebatch_cl_error_string(cl_int status) {
	switch (status) {
	case CL_SUCCESS: return "CL_SUCCESS";
	case CL_DEVICE_NOT_FOUND: return "CL_DEVICE_NOT_FOUND";
	case CL_DEVICE_NOT_AVAILABLE: return "CL_DEVICE_NOT_AVAILABLE";
	case CL_COMPILER_NOT_AVAILABLE: return "CL_COMPILER_NOT_AVAILABLE";
	case CL_MEM_OBJECT_ALLOCATION_FAILURE: return "CL_MEM_OBJECT_ALLOCATION_FAILURE";
	case CL_OUT_OF_RESOURCES: return "CL_OUT_OF_RESOURCES";
	case CL_OUT_OF_HOST_MEMORY: return "CL_OUT_OF_HOST_MEMORY";
	case CL_MEM_COPY_OVERLAP: return "CL_MEM_COPY_OVERLAP";
	case CL_BUILD_PROGRAM_FAILURE: return "CL_BUILD_PROGRAM_FAILURE";
	case CL_MAP_FAILURE: return "CL_MAP_FAILURE";
	case CL_INVALID_VALUE: return "CL_INVALID_VALUE";
	case CL_INVALID_DEVICE: return "CL_INVALID_DEVICE";
	case CL_INVALID_CONTEXT: return "CL_INVALID_CONTEXT";
	case CL_INVALID_COMMAND_QUEUE: return "CL_INVALID_COMMAND_QUEUE";
	case CL_INVALID_MEM_OBJECT: return "CL_INVALID_MEM_OBJECT";
	case CL_INVALID_BUFFER_SIZE: return "CL_INVALID_BUFFER_SIZE";
	case CL_INVALID_PROGRAM: return "CL_INVALID_PROGRAM";
	case CL_INVALID_PROGRAM_EXECUTABLE: return "CL_INVALID_PROGRAM_EXECUTABLE";
	case CL_INVALID_KERNEL_NAME: return "CL_INVALID_KERNEL_NAME";
	case CL_INVALID_KERNEL: return "CL_INVALID_KERNEL";
	case CL_INVALID_ARG_INDEX: return "CL_INVALID_ARG_INDEX";
	case CL_INVALID_ARG_VALUE: return "CL_INVALID_ARG_VALUE";
	case CL_INVALID_ARG_SIZE: return "CL_INVALID_ARG_SIZE";
	case CL_INVALID_KERNEL_ARGS: return "CL_INVALID_KERNEL_ARGS";
	case CL_INVALID_WORK_DIMENSION: return "CL_INVALID_WORK_DIMENSION";
	case CL_INVALID_WORK_GROUP_SIZE: return "CL_INVALID_WORK_GROUP_SIZE";
	case CL_INVALID_GLOBAL_OFFSET: return "CL_INVALID_GLOBAL_OFFSET";
	case CL_INVALID_OPERATION: return "CL_INVALID_OPERATION";
	default: return "CL_UNKNOWN_ERROR";
	}
}

static cl_command_queue rotatebatch_create_queue(cl_context ctx, cl_device_id device, cl_int *status) {
#if CL_TARGET_OPENCL_VERSION >= 200
	const cl_queue_properties props[] = {0};
	return clCreateCommandQueueWithProperties(ctx, device, props, status);
#else
	return clCreateCommandQueue(ctx, device, 0, status);
#endif
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"
)

// Runtime owns the OpenCL context and command queue shared by all device
// buffer and kernel operations of one process run.
type Runtime struct {
	platformID C.cl_platform_id
	deviceID   C.cl_device_id
	context    C.cl_context
	queue      C.cl_command_queue
	Platform   PlatformInfo
	Device     DeviceInfo
}

// ErrNoDevices indicates that no usable OpenCL devices were found.
var ErrNoDevices = errors.New("no OpenCL devices found")

// InitOpenCL selects a device (GPU preferred, then dedicated accelerator,
// then CPU) and creates a context and command queue on it.
func InitOpenCL() (*Runtime, error) {
	records, err := enumeratePlatformRecords()
	if err != nil {
		return nil, err
	}

	chosenPlatform, chosenDevice, ok := selectDevice(records)
	if !ok {
		return nil, ErrNoDevices
	}

	var status C.cl_int

	context := C.clCreateContext(nil, 1, &chosenDevice.id, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}

	queue := C.rotatebatch_create_queue(context, chosenDevice.id, &status)
	if status != C.CL_SUCCESS {
		C.clReleaseContext(context)
		return nil, statusError("clCreateCommandQueue", status)
	}

	return &Runtime{
		platformID: chosenPlatform.id,
		deviceID:   chosenDevice.id,
		context:    context,
		queue:      queue,
		Platform:   chosenPlatform.info,
		Device:     chosenDevice.info,
	}, nil
}

func selectDevice(records []platformRecord) (platformRecord, deviceRecord, bool) {
	for _, want := range []DeviceType{DeviceTypeGPU, DeviceTypeAccelerator, DeviceTypeCPU} {
		for _, platform := range records {
			for _, device := range platform.devices {
				if device.info.Type == want {
					return platform, device, true
				}
			}
		}
	}
	for _, platform := range records {
		if len(platform.devices) > 0 {
			return platform, platform.devices[0], true
		}
	}
	return platformRecord{}, deviceRecord{}, false
}

// Close releases the OpenCL queue and context.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.queue != nil {
		C.clReleaseCommandQueue(r.queue)
		r.queue = nil
	}
	if r.context != nil {
		C.clReleaseContext(r.context)
		r.context = nil
	}
}

// ContextPtr exposes the raw context handle for kernel hosts.
func (r *Runtime) ContextPtr() unsafe.Pointer {
	return unsafe.Pointer(r.context)
}

// QueuePtr exposes the raw command-queue handle for kernel hosts.
func (r *Runtime) QueuePtr() unsafe.Pointer {
	return unsafe.Pointer(r.queue)
}

// DevicePtr exposes the raw device handle for kernel hosts.
func (r *Runtime) DevicePtr() unsafe.Pointer {
	return unsafe.Pointer(r.deviceID)
}

// EnumeratePlatforms returns discovered platforms with their devices.
func EnumeratePlatforms() ([]PlatformInfo, error) {
	records, err := enumeratePlatformRecords()
	if err != nil {
		return nil, err
	}

	out := make([]PlatformInfo, len(records))
	for i, platform := range records {
		out[i] = platform.info
	}
	return out, nil
}

type platformRecord struct {
	id      C.cl_platform_id
	info    PlatformInfo
	devices []deviceRecord
}

type deviceRecord struct {
	id   C.cl_device_id
	info DeviceInfo
}

func enumeratePlatformRecords() ([]platformRecord, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	if count == 0 {
		return nil, nil
	}

	platformIDs := make([]C.cl_platform_id, int(count))
	status = C.clGetPlatformIDs(count, &platformIDs[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(list)", status)
	}

	records := make([]platformRecord, 0, int(count))
	for _, pid := range platformIDs {
		rec := platformRecord{id: pid}

		var err error
		if rec.info.Name, err = getPlatformString(pid, C.CL_PLATFORM_NAME); err != nil {
			return nil, err
		}
		if rec.info.Vendor, err = getPlatformString(pid, C.CL_PLATFORM_VENDOR); err != nil {
			return nil, err
		}
		if rec.info.Version, err = getPlatformString(pid, C.CL_PLATFORM_VERSION); err != nil {
			return nil, err
		}

		devices, err := enumerateDevices(pid)
		if err != nil && !errors.Is(err, ErrNoDevices) {
			return nil, err
		}

		rec.devices = devices
		rec.info.Devices = make([]DeviceInfo, len(devices))
		for i, device := range devices {
			rec.info.Devices[i] = device.info
		}

		records = append(records, rec)
	}

	return records, nil
}

func enumerateDevices(platform C.cl_platform_id) ([]deviceRecord, error) {
	var count C.cl_uint
	status := C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND {
		return nil, ErrNoDevices
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(count)", status)
	}
	if count == 0 {
		return nil, ErrNoDevices
	}

	deviceIDs := make([]C.cl_device_id, int(count))
	status = C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, count, &deviceIDs[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(list)", status)
	}

	devices := make([]deviceRecord, 0, int(count))
	for _, id := range deviceIDs {
		info, err := buildDeviceInfo(id)
		if err != nil {
			return nil, err
		}
		devices = append(devices, deviceRecord{id: id, info: info})
	}

	return devices, nil
}

func buildDeviceInfo(id C.cl_device_id) (DeviceInfo, error) {
	var info DeviceInfo
	var err error

	if info.Name, err = getDeviceString(id, C.CL_DEVICE_NAME); err != nil {
		return DeviceInfo{}, err
	}
	if info.Vendor, err = getDeviceString(id, C.CL_DEVICE_VENDOR); err != nil {
		return DeviceInfo{}, err
	}
	if info.Version, err = getDeviceString(id, C.CL_DEVICE_VERSION); err != nil {
		return DeviceInfo{}, err
	}

	var rawType C.cl_device_type
	status := C.clGetDeviceInfo(id, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(rawType)), unsafe.Pointer(&rawType), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(type)", status)
	}
	info.Type = mapDeviceType(rawType)

	var computeUnits C.cl_uint
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(computeUnits)), unsafe.Pointer(&computeUnits), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(computeUnits)", status)
	}
	info.MaxComputeUnits = uint32(computeUnits)

	var memBytes C.cl_ulong
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_GLOBAL_MEM_SIZE, C.size_t(unsafe.Sizeof(memBytes)), unsafe.Pointer(&memBytes), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(globalMem)", status)
	}
	info.GlobalMemBytes = uint64(memBytes)

	return info, nil
}

func getPlatformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	status := C.clGetPlatformInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(value)", status)
	}

	return trimNull(buf), nil
}

func getDeviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	status := C.clGetDeviceInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}

	return trimNull(buf), nil
}

func trimNull(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

func mapDeviceType(dt C.cl_device_type) DeviceType {
	switch {
	case dt&C.CL_DEVICE_TYPE_GPU != 0:
		return DeviceTypeGPU
	case dt&C.CL_DEVICE_TYPE_CPU != 0:
		return DeviceTypeCPU
	case dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return DeviceTypeAccelerator
	case dt&C.CL_DEVICE_TYPE_DEFAULT != 0:
		return DeviceTypeDefault
	default:
		return DeviceTypeUnknown
	}
}

func statusError(prefix string, status C.cl_int) error {
	return fmt.Errorf("%s: %s (%d)", prefix, C.GoString(C.rotatebatch_cl_error_string(status)), int(status))
}
