package spv

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptType tags the recognized standard output script forms.
type ScriptType uint8

const (
	ScriptTypeP2PKH  ScriptType = 0
	ScriptTypeP2SH   ScriptType = 1
	ScriptTypeP2WPKH ScriptType = 2
)

// DustThreshold is the minimum payment size below which an output is
// ignored for payment matching.
const DustThreshold = btcutil.Amount(546)

// DecodeAddress parses a Bitcoin address for the verifier's network and
// classifies its script form. Unrecognized or foreign-network addresses
// yield valid=false.
func (v *Verifier) DecodeAddress(address string) (valid bool, scriptType ScriptType, scriptHash []byte) {
	addr, err := btcutil.DecodeAddress(address, v.chainParams)
	if err != nil || !addr.IsForNet(v.chainParams) {
		return false, 0, nil
	}

	switch a := addr.(type) {
	case *btcutil.AddressPubKeyHash:
		return true, ScriptTypeP2PKH, a.Hash160()[:]
	case *btcutil.AddressScriptHash:
		return true, ScriptTypeP2SH, a.Hash160()[:]
	case *btcutil.AddressWitnessPubKeyHash:
		return true, ScriptTypeP2WPKH, a.WitnessProgram()
	default:
		return false, 0, nil
	}
}

// VerifyPayment reports whether the transaction pays at least minAmount
// (and at least the dust threshold) to the given address in a single
// output. It never errors; any unacceptable input yields false.
func (v *Verifier) VerifyPayment(address string, minAmount btcutil.Amount, txInfo *TxInfo) bool {
	if address == "" || minAmount <= 0 || txInfo == nil {
		return false
	}

	addr, err := btcutil.DecodeAddress(address, v.chainParams)
	if err != nil || !addr.IsForNet(v.chainParams) {
		return false
	}
	if valid, _, _ := v.DecodeAddress(address); !valid {
		return false
	}

	expectedScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return false
	}

	outs, err := parseOutputs(txInfo.OutputVector)
	if err != nil || len(outs) == 0 {
		return false
	}

	required := minAmount
	if required < DustThreshold {
		required = DustThreshold
	}

	for _, out := range outs {
		if out.Value >= int64(required) && bytes.Equal(out.PkScript, expectedScript) {
			return true
		}
	}

	return false
}
