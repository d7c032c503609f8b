package contracts

// Contract ABIs for the position registry (Uniswap V3 position manager),
// the staking ledger (canonical staker contract) and the ERC20 reward
// token. Only the entry points the client exercises are included.

// PositionRegistryABI is the ABI subset of the NFT position registry.
const PositionRegistryABI = `[
	{
		"constant": true,
		"inputs": [{"name": "owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "index", "type": "uint256"}
		],
		"name": "tokenOfOwnerByIndex",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "ownerOf",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "getApproved",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "positions",
		"outputs": [
			{"name": "nonce", "type": "uint96"},
			{"name": "operator", "type": "address"},
			{"name": "token0", "type": "address"},
			{"name": "token1", "type": "address"},
			{"name": "fee", "type": "uint24"},
			{"name": "tickLower", "type": "int24"},
			{"name": "tickUpper", "type": "int24"},
			{"name": "liquidity", "type": "uint128"},
			{"name": "feeGrowthInside0LastX128", "type": "uint256"},
			{"name": "feeGrowthInside1LastX128", "type": "uint256"},
			{"name": "tokensOwed0", "type": "uint128"},
			{"name": "tokensOwed1", "type": "uint128"}
		],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "safeTransferFrom",
		"outputs": [],
		"type": "function"
	}
]`

// StakingLedgerABI is the ABI subset of the staking ledger contract.
const StakingLedgerABI = `[
	{
		"constant": true,
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "deposits",
		"outputs": [
			{"name": "owner", "type": "address"},
			{"name": "numberOfStakes", "type": "uint48"},
			{"name": "tickLower", "type": "int24"},
			{"name": "tickUpper", "type": "int24"}
		],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{
				"name": "key",
				"type": "tuple",
				"components": [
					{"name": "rewardToken", "type": "address"},
					{"name": "pool", "type": "address"},
					{"name": "startTime", "type": "uint256"},
					{"name": "endTime", "type": "uint256"},
					{"name": "refundee", "type": "address"}
				]
			},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "getRewardInfo",
		"outputs": [
			{"name": "reward", "type": "uint256"},
			{"name": "secondsInsideX128", "type": "uint160"}
		],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "rewardToken", "type": "address"},
			{"name": "owner", "type": "address"}
		],
		"name": "rewards",
		"outputs": [{"name": "rewardsOwed", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "incentiveId", "type": "bytes32"}],
		"name": "incentives",
		"outputs": [
			{"name": "totalRewardUnclaimed", "type": "uint256"},
			{"name": "totalSecondsClaimedX128", "type": "uint160"},
			{"name": "numberOfStakes", "type": "uint96"}
		],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{
				"name": "key",
				"type": "tuple",
				"components": [
					{"name": "rewardToken", "type": "address"},
					{"name": "pool", "type": "address"},
					{"name": "startTime", "type": "uint256"},
					{"name": "endTime", "type": "uint256"},
					{"name": "refundee", "type": "address"}
				]
			},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "stakeToken",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{
				"name": "key",
				"type": "tuple",
				"components": [
					{"name": "rewardToken", "type": "address"},
					{"name": "pool", "type": "address"},
					{"name": "startTime", "type": "uint256"},
					{"name": "endTime", "type": "uint256"},
					{"name": "refundee", "type": "address"}
				]
			},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "unstakeToken",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "tokenId", "type": "uint256"},
			{"name": "to", "type": "address"},
			{"name": "data", "type": "bytes"}
		],
		"name": "withdrawToken",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "rewardToken", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "amountRequested", "type": "uint256"}
		],
		"name": "claimReward",
		"outputs": [{"name": "reward", "type": "uint256"}],
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "tokenId", "type": "uint256"},
			{"indexed": true, "name": "incentiveId", "type": "bytes32"},
			{"indexed": false, "name": "liquidity", "type": "uint128"}
		],
		"name": "TokenStaked",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "tokenId", "type": "uint256"},
			{"indexed": true, "name": "incentiveId", "type": "bytes32"}
		],
		"name": "TokenUnstaked",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "to", "type": "address"},
			{"indexed": false, "name": "reward", "type": "uint256"}
		],
		"name": "RewardClaimed",
		"type": "event"
	}
]`

// ERC20ABI is the reward token interface used for balances and metadata.
const ERC20ABI = `[
	{
		"constant": true,
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "symbol",
		"outputs": [{"name": "", "type": "string"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	}
]`
