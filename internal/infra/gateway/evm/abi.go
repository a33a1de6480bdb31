package evm

// RegistryABI is the interface of the HealthFactRegistry contract.
// Timestamps are unix seconds; enums use the factguard ordinals.
const RegistryABI = `[
  {"type":"function","name":"registerFact","stateMutability":"nonpayable",
   "inputs":[
     {"name":"factHash","type":"bytes32"},
     {"name":"factId","type":"string"},
     {"name":"verdict","type":"uint8"},
     {"name":"severity","type":"uint8"},
     {"name":"issuedAt","type":"uint64"},
     {"name":"lastReviewedAt","type":"uint64"},
     {"name":"version","type":"uint64"}],
   "outputs":[{"name":"sequence","type":"uint256"}]},
  {"type":"function","name":"updateFactStatus","stateMutability":"nonpayable",
   "inputs":[{"name":"factHash","type":"bytes32"},{"name":"status","type":"uint8"}],
   "outputs":[]},
  {"type":"function","name":"transferOwnership","stateMutability":"nonpayable",
   "inputs":[{"name":"newOwner","type":"address"}],
   "outputs":[]},
  {"type":"function","name":"checkFactExists","stateMutability":"view",
   "inputs":[{"name":"factHash","type":"bytes32"}],
   "outputs":[{"name":"exists","type":"bool"},{"name":"status","type":"uint8"}]},
  {"type":"function","name":"getFactByHash","stateMutability":"view",
   "inputs":[{"name":"factHash","type":"bytes32"}],
   "outputs":[
     {"name":"factHash","type":"bytes32"},
     {"name":"factId","type":"string"},
     {"name":"verdict","type":"uint8"},
     {"name":"severity","type":"uint8"},
     {"name":"issuedAt","type":"uint64"},
     {"name":"lastReviewedAt","type":"uint64"},
     {"name":"version","type":"uint64"},
     {"name":"status","type":"uint8"},
     {"name":"addedBy","type":"address"},
     {"name":"sequence","type":"uint256"},
     {"name":"addedAtBlock","type":"uint256"}]},
  {"type":"function","name":"getFactById","stateMutability":"view",
   "inputs":[{"name":"factId","type":"string"}],
   "outputs":[
     {"name":"factHash","type":"bytes32"},
     {"name":"factId","type":"string"},
     {"name":"verdict","type":"uint8"},
     {"name":"severity","type":"uint8"},
     {"name":"issuedAt","type":"uint64"},
     {"name":"lastReviewedAt","type":"uint64"},
     {"name":"version","type":"uint64"},
     {"name":"status","type":"uint8"},
     {"name":"addedBy","type":"address"},
     {"name":"sequence","type":"uint256"},
     {"name":"addedAtBlock","type":"uint256"}]},
  {"type":"function","name":"totalFacts","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"owner","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"address"}]}
]`
