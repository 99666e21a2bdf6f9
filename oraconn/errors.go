package oraconn

import (
	"regexp"
	"strconv"
)

// Oracle reports every failure as an ORA-nnnnn message. The engine only
// needs three buckets: the connection is gone, the caller lacks catalog
// visibility, or the statement itself was rejected.

var oraCodeRE = regexp.MustCompile(`ORA-(\d{3,5})`)

const codeLogonDenied = 1017

var connectivityCodes = map[int]bool{
	1034:  true, // ORACLE not available
	3113:  true, // end-of-file on communication channel
	3114:  true, // not connected to ORACLE
	12154: true, // TNS could not resolve connect identifier
	12170: true, // TNS connect timeout
	12514: true, // listener does not know of service
	12541: true, // TNS no listener
	12543: true, // TNS destination host unreachable
}

var privilegeCodes = map[int]bool{
	942:  true, // table or view does not exist (raised for unprivileged catalog views)
	1031: true, // insufficient privileges
}

// Code extracts the ORA error code from err, or 0 when none is present.
func Code(err error) int {
	if err == nil {
		return 0
	}
	m := oraCodeRE.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0
	}
	return code
}

// IsConnectivity reports whether err indicates the transport to the
// database is lost rather than a statement being rejected.
func IsConnectivity(err error) bool {
	return connectivityCodes[Code(err)]
}

// IsInsufficientPrivilege reports whether err indicates a catalog view is
// hidden from the current session. Callers must not treat such reads as
// "resource does not exist".
func IsInsufficientPrivilege(err error) bool {
	return privilegeCodes[Code(err)]
}
