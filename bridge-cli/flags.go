package bridgecli

import "github.com/urfave/cli/v2"

var CommonOpts struct {
	Port         int
	MQTTURL      string
	DataTopic    string
	CmdTopic     string
	DBPath       string
	StaticDir    string
	DashboardDir string
	Debug        bool
}

var PortFlag = func(p int) *cli.IntFlag {
	return &cli.IntFlag{
		Name:        "port",
		Usage:       "port to listen on",
		Value:       p,
		EnvVars:     []string{"PORT"},
		Destination: &CommonOpts.Port,
	}
}
var MQTTURLFlag = cli.StringFlag{
	Name:        "mqtt-url",
	Usage:       "MQTT broker URL",
	Value:       "tcp://broker.hivemq.com:1883",
	EnvVars:     []string{"MQTT_URL"},
	Destination: &CommonOpts.MQTTURL,
}
var DataTopicFlag = cli.StringFlag{
	Name:        "mqtt-topic",
	Usage:       "topic the device publishes readings on",
	Value:       "hidrometro/leandro/dados",
	EnvVars:     []string{"MQTT_TOPIC"},
	Destination: &CommonOpts.DataTopic,
}
var CmdTopicFlag = cli.StringFlag{
	Name:        "mqtt-cmd-topic",
	Usage:       "topic commands are republished on",
	Value:       "hidrometro/leandro/cmd",
	EnvVars:     []string{"MQTT_CMD_TOPIC"},
	Destination: &CommonOpts.CmdTopic,
}
var DBPathFlag = cli.StringFlag{
	Name:        "db-path",
	Usage:       "path to the SQLite readings database",
	Value:       "data/hidrometro.db",
	EnvVars:     []string{"DB_PATH"},
	Destination: &CommonOpts.DBPath,
}
var StaticDirFlag = cli.StringFlag{
	Name:        "static-dir",
	Usage:       "directory of static assets served at /",
	Value:       "public",
	EnvVars:     []string{"STATIC_DIR"},
	Destination: &CommonOpts.StaticDir,
}
var DashboardDirFlag = cli.StringFlag{
	Name:        "dashboard-dir",
	Usage:       "directory of the dashboard UI served at /dashboard",
	Value:       "",
	EnvVars:     []string{"DASHBOARD_DIR"},
	Destination: &CommonOpts.DashboardDir,
}
var DebugFlag = cli.BoolFlag{
	Name:        "debug",
	Usage:       "enable debug logging",
	Value:       false,
	EnvVars:     []string{"DEBUG"},
	Destination: &CommonOpts.Debug,
}

var CommonFlags = []cli.Flag{
	&MQTTURLFlag,
	&DataTopicFlag,
	&CmdTopicFlag,
	&DebugFlag,
}
