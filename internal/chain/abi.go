package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// contractABIJSON covers exactly the events and methods the node relies on,
// per spec.md §6. Narrowing to an explicit signature list (rather than a
// full contract ABI) makes schema evolution elsewhere in the contract safe
// to ignore, per spec.md §9.
const contractABIJSON = `[
	{"type":"event","name":"NewRequest","inputs":[
		{"name":"requestId","type":"uint256","indexed":true},
		{"name":"redundancy","type":"uint8","indexed":false}
	]},
	{"type":"event","name":"Processed","inputs":[
		{"name":"requestId","type":"uint256","indexed":true},
		{"name":"success","type":"bool","indexed":false}
	]},
	{"type":"event","name":"ResultSubmitted","inputs":[
		{"name":"requestId","type":"uint256","indexed":true},
		{"name":"node","type":"address","indexed":true}
	]},
	{"type":"event","name":"NodeAdded","inputs":[
		{"name":"node","type":"address","indexed":true}
	]},
	{"type":"event","name":"NodeRemoved","inputs":[
		{"name":"node","type":"address","indexed":true}
	]},
	{"type":"function","name":"getAuthorizedNodes","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"checkSubmission","stateMutability":"view","inputs":[
		{"name":"requestId","type":"uint256"},
		{"name":"node","type":"address"}
	],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"getRequestInfo","stateMutability":"view","inputs":[
		{"name":"requestId","type":"uint256"}
	],"outputs":[
		{"name":"platform","type":"bytes32"},
		{"name":"model","type":"bytes32"},
		{"name":"prompt","type":"bytes32"},
		{"name":"input","type":"string"},
		{"name":"redundancy","type":"uint8"},
		{"name":"returnContentWithinResultTag","type":"bool"},
		{"name":"storeResultOffchain","type":"bool"},
		{"name":"caller","type":"address"},
		{"name":"callback","type":"string"},
		{"name":"args","type":"bytes"}
	]},
	{"type":"function","name":"sendResult","stateMutability":"nonpayable","inputs":[
		{"name":"requestId","type":"uint256"},
		{"name":"result","type":"string"}
	],"outputs":[]}
]`

func parsedContractABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(contractABIJSON))
}

// These five names are the log topics decodeLog dispatches on, per
// spec.md §9; logs with any other topic are ignored after decoding fails.
const (
	eventNewRequest      = "NewRequest"
	eventProcessed       = "Processed"
	eventResultSubmitted = "ResultSubmitted"
	eventNodeAdded       = "NodeAdded"
	eventNodeRemoved     = "NodeRemoved"
)
