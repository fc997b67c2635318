package mail

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	AlertTo  []string
}
