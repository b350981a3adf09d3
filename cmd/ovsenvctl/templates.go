package main

var DBusServiceTemplate = `[D-BUS Service]
Name=com.ovsenv.Environment1
Exec={{ .Program }}
User={{ .User }}
SystemdService={{ .Name }}.service
`

var DBusPolicyConfigTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE busconfig PUBLIC "-//freedesktop//DTD D-BUS Bus Configuration 1.0//EN" "https://dbus.freedesktop.org/doc/busconfig.dtd">
<busconfig>
    <policy user="{{ .User }}">
        <!-- Only {{ .User }} can own the Environment1 name. -->
        <allow own="com.ovsenv.Environment1" />
    </policy>

    <policy context="default">
        <!-- Anyone can send messages to the Environment1 interface. -->
        <allow send_destination="com.ovsenv.Environment1"
            send_interface="com.ovsenv.Environment1" />

        <!-- Anyone can send messages to the Properties interface. -->
        <allow send_destination="com.ovsenv.Environment1"
            send_interface="org.freedesktop.DBus.Properties" />

        <!-- Anyone can send messages to the Introspectable interface. -->
        <allow send_destination="com.ovsenv.Environment1"
            send_interface="org.freedesktop.DBus.Introspectable" />

        <!-- Anyone can send messages to the Peer interface. -->
        <allow send_destination="com.ovsenv.Environment1"
            send_interface="org.freedesktop.DBus.Peer" />
    </policy>
</busconfig>
`

var SystemdServiceTemplate = `[Unit]
Description=ovsenv environment agent
Documentation=https://github.com/ovsenv/ovsenv

[Service]
Type=notify
ExecStart={{ .Program }}
WatchdogSec=150

[Install]
WantedBy=multi-user.target
`
