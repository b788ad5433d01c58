package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves the unique ID identifying the machine.
// The host name is used when the platform provides no machine id.
func MachineID() string {
	id, err := machineid.ProtectedID("motorlink")
	if err == nil {
		return id
	}
	host, herr := os.Hostname()
	if herr != nil {
		glog.Warningf("machine id unavailable: %v, %v", err, herr)
		return ""
	}
	glog.Warningf("machine id unavailable, using host name %s: %v", host, err)
	return host
}
