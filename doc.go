/*
Package cardano records voter registrations on the Cardano blockchain.

A registration is a small self-payment from an enterprise address whose
transaction carries the voter record as metadata under a fixed label. The
package loads cardano-cli signing keys, derives addresses, builds the
metadata payload, selects inputs, balances the fee and signs the
transaction. Queries and submission go through a ChainContext, of which the
blockfrost package provides the hosted implementation and the emulator
package a local one.

It implements only the parts of the Cardano ledger needed for this
workflow: enterprise addresses, lovelace-only outputs and shelley style
auxiliary data.
*/

package cardano
