package util

import (
	"os/exec"
	"runtime"
)

// browserCommand 各平台打开 URL 的默认命令
func browserCommand(goos, url string) *exec.Cmd {
	switch goos {
	case "windows":
		// rundll32 在 Windows 7 上比 cmd /c start 稳定
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		return exec.Command("open", url)
	default:
		return exec.Command("xdg-open", url)
	}
}

// fallbackBrowsers Linux 下依次尝试的浏览器
var fallbackBrowsers = []string{"google-chrome", "firefox", "chromium-browser", "sensible-browser"}

// OpenBrowser 打开默认浏览器
func OpenBrowser(url string) error {
	return browserCommand(runtime.GOOS, url).Start()
}

// OpenBrowserWithFallback 默认方式失败时尝试备选方式
func OpenBrowserWithFallback(url string) error {
	err := OpenBrowser(url)
	if err == nil {
		return nil
	}

	switch runtime.GOOS {
	case "windows":
		return exec.Command("explorer", url).Start()
	case "linux":
		for _, browser := range fallbackBrowsers {
			if exec.Command(browser, url).Start() == nil {
				return nil
			}
		}
	}
	return err
}
