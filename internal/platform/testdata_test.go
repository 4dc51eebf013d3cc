package platform

import "github.com/kailas-cloud/quotawatch/internal/domain"

func testMatchers() matchers {
	return newMatchers("language_server_windows_x64.exe", domain.DefaultProfile())
}

func posixMatchers(name string) matchers {
	return newMatchers(name, domain.DefaultProfile())
}

// Captured from Windows 11, PowerShell 5.1, one language server.
const psSingleOutput = `{"ProcessId":18244,"Name":"language_server_windows_x64.exe","CommandLine":"\"c:\\Users\\dev\\AppData\\Local\\Programs\\Antigravity\\resources\\app\\extensions\\antigravity\\bin\\language_server_windows_x64.exe\" --enable_lsp --extension_server_port 57210 --csrf_token 7f3c2a9e-1b4d-4e8a-9c61-2d5f0e8b7a13 --random_port --app_data_dir antigravity --cloud_code_endpoint https://daily-cloudcode-pa.googleapis.com"}`

// Two servers (two windows open) plus one unrelated process with no token.
const psArrayOutput = `WARNING: progress preference ignored
[{"ProcessId":100,"Name":"language_server_windows_x64.exe","CommandLine":"C:\\Antigravity\\bin\\language_server_windows_x64.exe --csrf_token=tok-a --extension_server_port 5000 --app_data_dir antigravity"},
 {"ProcessId":200,"Name":"language_server_windows_x64.exe","CommandLine":"C:\\Antigravity\\bin\\language_server_windows_x64.exe --csrf_token tok-b --app_data_dir antigravity"},
 {"ProcessId":300,"Name":"language_server_windows_x64.exe","CommandLine":"C:\\Other\\language_server_windows_x64.exe --app_data_dir antigravity"},
 {"ProcessId":400,"Name":"language_server_windows_x64.exe","CommandLine":null}]`

// WMIC list format, CR CR LF line endings as emitted by wmic.exe.
const wmicOutput = "\r\r\n\r\r\nCommandLine=C:\\Antigravity\\bin\\language_server_windows_x64.exe --csrf_token wm-tok --extension_server_port 6001 --app_data_dir antigravity\r\r\nProcessId=4242\r\r\n\r\r\n\r\r\nCommandLine=C:\\Codeium\\language_server_windows_x64.exe --csrf_token other --app_data_dir codeium\r\r\nProcessId=5151\r\r\n\r\r\n"

// netstat -ano on a German locale; state column reads ABHÖREN.
const netstatOutput = `
Aktive Verbindungen

  Proto  Lokale Adresse         Remoteadresse          Status           PID
  TCP    0.0.0.0:135            0.0.0.0:0              ABHÖREN          1028
  TCP    127.0.0.1:57211        0.0.0.0:0              ABHÖREN          18244
  TCP    127.0.0.1:57209        0.0.0.0:0              ABHÖREN          18244
  TCP    127.0.0.1:57209        127.0.0.1:57300        HERGESTELLT      18244
  TCP    [::1]:57209            [::]:0                 ABHÖREN          18244
  TCP    127.0.0.1:60000        0.0.0.0:0              ABHÖREN          182440
  UDP    0.0.0.0:5353           *:*                                     18244
`

const portLinesOutput = "57211\r\n57209\r\n\r\n57211\r\n"

// ps -ww -eo pid,args on macOS.
const psMacOutput = `  PID ARGS
    1 /sbin/launchd
  812 /Applications/Antigravity.app/Contents/Resources/app/extensions/antigravity/bin/language_server_macos_arm --enable_lsp --csrf_token 0e1c-mac-tok --extension_server_port 53110 --app_data_dir antigravity
  813 /Applications/Antigravity.app/Contents/Resources/app/extensions/antigravity/bin/language_server_macos_arm --enable_lsp --extension_server_port 53111
  990 /usr/bin/vim notes.txt --csrf_token nope
`

// pgrep -af on Linux.
const pgrepLinuxOutput = `2077 /usr/share/antigravity/resources/app/extensions/antigravity/bin/language_server_linux_x64 --csrf_token lin-tok --extension_server_port 41001
`

// lsof -nP -a -iTCP -sTCP:LISTEN -p 812
const lsofOutput = `COMMAND   PID USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
language_ 812  dev   11u  IPv4 0x5c1a2b3c4d5e6f70      0t0  TCP 127.0.0.1:53125 (LISTEN)
language_ 812  dev   12u  IPv4 0x5c1a2b3c4d5e6f71      0t0  TCP 127.0.0.1:53124 (LISTEN)
language_ 812  dev   13u  IPv6 0x5c1a2b3c4d5e6f72      0t0  TCP [::1]:53124 (LISTEN)
`

// ss -tlnp on Ubuntu 24.04.
const ssOutput = `State  Recv-Q Send-Q Local Address:Port  Peer Address:PortProcess
LISTEN 0      4096       127.0.0.1:41003      0.0.0.0:*    users:(("language_server",pid=2077,fd=12))
LISTEN 0      4096       127.0.0.1:41002      0.0.0.0:*    users:(("language_server",pid=2077,fd=11))
LISTEN 0      128          0.0.0.0:22         0.0.0.0:*    users:(("sshd",pid=700,fd=3))
LISTEN 0      4096           [::1]:41002         [::]:*    users:(("language_server",pid=2077,fd=13))
LISTEN 0      4096       127.0.0.1:41009      0.0.0.0:*    users:(("other",pid=20770,fd=3))
`
