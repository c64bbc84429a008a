package gpu

import (
	"fmt"

	"github.com/spaghettifunk/anima-vk/engine/core"
)

// Result is a device result code. Values match VkResult.
type Result int32

const (
	ResultSuccess                    Result = 0
	ResultNotReady                   Result = 1
	ResultTimeout                    Result = 2
	ResultEventSet                   Result = 3
	ResultEventReset                 Result = 4
	ResultIncomplete                 Result = 5
	ResultErrorOutOfHostMemory       Result = -1
	ResultErrorOutOfDeviceMemory     Result = -2
	ResultErrorInitializationFailed  Result = -3
	ResultErrorDeviceLost            Result = -4
	ResultErrorMemoryMapFailed       Result = -5
	ResultErrorLayerNotPresent       Result = -6
	ResultErrorExtensionNotPresent   Result = -7
	ResultErrorFeatureNotPresent     Result = -8
	ResultErrorIncompatibleDriver    Result = -9
	ResultErrorTooManyObjects        Result = -10
	ResultErrorFormatNotSupported    Result = -11
	ResultErrorFragmentedPool        Result = -12
	ResultErrorUnknown               Result = -13
	ResultErrorOutOfPoolMemory       Result = -1000069000
	ResultErrorInvalidExternalHandle Result = -1000072003
	ResultErrorFragmentation         Result = -1000161000
	ResultErrorInvalidShaderNV       Result = -1000012000
)

var resultStrings = map[Result][2]string{
	ResultSuccess:                    {"VK_SUCCESS", "Command successfully completed"},
	ResultNotReady:                   {"VK_NOT_READY", "A fence or query has not yet completed"},
	ResultTimeout:                    {"VK_TIMEOUT", "A wait operation has not completed in the specified time"},
	ResultEventSet:                   {"VK_EVENT_SET", "An event is signaled"},
	ResultEventReset:                 {"VK_EVENT_RESET", "An event is unsignaled"},
	ResultIncomplete:                 {"VK_INCOMPLETE", "A return array was too small for the result"},
	ResultErrorOutOfHostMemory:       {"VK_ERROR_OUT_OF_HOST_MEMORY", "A host memory allocation has failed."},
	ResultErrorOutOfDeviceMemory:     {"VK_ERROR_OUT_OF_DEVICE_MEMORY", "A device memory allocation has failed."},
	ResultErrorInitializationFailed:  {"VK_ERROR_INITIALIZATION_FAILED", "Initialization of an object could not be completed for implementation-specific reasons."},
	ResultErrorDeviceLost:            {"VK_ERROR_DEVICE_LOST", "The logical or physical device has been lost."},
	ResultErrorMemoryMapFailed:       {"VK_ERROR_MEMORY_MAP_FAILED", "Mapping of a memory object has failed."},
	ResultErrorLayerNotPresent:       {"VK_ERROR_LAYER_NOT_PRESENT", "A requested layer is not present or could not be loaded."},
	ResultErrorExtensionNotPresent:   {"VK_ERROR_EXTENSION_NOT_PRESENT", "A requested extension is not supported."},
	ResultErrorFeatureNotPresent:     {"VK_ERROR_FEATURE_NOT_PRESENT", "A requested feature is not supported."},
	ResultErrorIncompatibleDriver:    {"VK_ERROR_INCOMPATIBLE_DRIVER", "The requested version of Vulkan is not supported by the driver."},
	ResultErrorTooManyObjects:        {"VK_ERROR_TOO_MANY_OBJECTS", "Too many objects of the type have already been created."},
	ResultErrorFormatNotSupported:    {"VK_ERROR_FORMAT_NOT_SUPPORTED", "A requested format is not supported on this device."},
	ResultErrorFragmentedPool:        {"VK_ERROR_FRAGMENTED_POOL", "A pool allocation has failed due to fragmentation of the pool's memory."},
	ResultErrorUnknown:               {"VK_ERROR_UNKNOWN", "An unknown error has occurred."},
	ResultErrorOutOfPoolMemory:       {"VK_ERROR_OUT_OF_POOL_MEMORY", "A pool memory allocation has failed."},
	ResultErrorInvalidExternalHandle: {"VK_ERROR_INVALID_EXTERNAL_HANDLE", "An external handle is not a valid handle of the specified type."},
	ResultErrorFragmentation:         {"VK_ERROR_FRAGMENTATION", "A descriptor pool creation has failed due to fragmentation."},
	ResultErrorInvalidShaderNV:       {"VK_ERROR_INVALID_SHADER_NV", "One or more shaders failed to compile or link."},
}

// String returns the VkResult name of r.
func (r Result) String() string {
	if s, ok := resultStrings[r]; ok {
		return s[0]
	}
	return fmt.Sprintf("VkResult(%d)", int32(r))
}

// Description returns the name of r followed by its explanation.
func (r Result) Description() string {
	if s, ok := resultStrings[r]; ok {
		return s[0] + " " + s[1]
	}
	return r.String()
}

// IsSuccess reports whether r is a success code. Non-error status codes such as
// ResultTimeout count as success at the API level; callers that wait check them explicitly.
func (r Result) IsSuccess() bool {
	return r >= 0
}

// ResultError is a device call that returned an error code.
type ResultError struct {
	Op     string
	Result Result
}

// NewResultError returns a *ResultError for op.
func NewResultError(op string, result Result) *ResultError {
	return &ResultError{Op: op, Result: result}
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s failed with %s", e.Op, e.Result)
}

// Unwrap exposes the error kinds callers match on with errors.Is.
func (e *ResultError) Unwrap() error {
	switch e.Result {
	case ResultErrorOutOfPoolMemory, ResultErrorFragmentedPool:
		return core.ErrPoolExhausted
	}
	return nil
}
