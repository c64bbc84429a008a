package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// VulkanResultIsSuccess reports whether result is one of the VkResult success codes.
func VulkanResultIsSuccess(result vk.Result) bool {
	return gpu.Result(result).IsSuccess()
}

// VulkanResultString returns the VkResult name, followed by its description when
// getExtended is set.
func VulkanResultString(result vk.Result, getExtended bool) string {
	if getExtended {
		return gpu.Result(result).Description()
	}
	return gpu.Result(result).String()
}

// check converts the result of op into a *gpu.ResultError. Success codes return nil.
func check(op string, result vk.Result) error {
	if VulkanResultIsSuccess(result) {
		return nil
	}
	err := gpu.NewResultError(op, gpu.Result(result))
	core.LogError("%s: %s", op, VulkanResultString(result, true))
	return err
}

var end = "\x00"
var endChar byte = '\x00'

// VulkanSafeString null-terminates s for the C side.
func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}
