package lndc

import (
	"context"
	"encoding/hex"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/pkg/errors"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/node"
)

func (client *Client) GetChannel(ctx context.Context, id bdb.ChanId) (*bdb.Channel, error) {
	edge, err := client.lightning.GetChanInfo(client.auth(ctx), &lnrpc.ChanInfoRequest{
		ChanId: uint64(id),
	})
	if err != nil {
		return nil, errors.Errorf("Could not get channel %v: %v", id, err)
	}

	return channelFromEdge(edge), nil
}

func (client *Client) GetChannels(ctx context.Context, req *node.GetChannelsRequest) ([]*bdb.LocalChannel, error) {
	rpcReq := &lnrpc.ListChannelsRequest{}

	if req != nil {
		rpcReq.ActiveOnly = req.IsActive

		if req.PartnerPublicKey != "" {
			peer, err := hex.DecodeString(string(req.PartnerPublicKey))
			if err != nil {
				return nil, errors.Errorf("Could not decode peer public key: %v", err)
			}
			rpcReq.Peer = peer
		}
	}

	channelList, err := client.lightning.ListChannels(client.auth(ctx), rpcReq)
	if err != nil {
		return nil, errors.Errorf("Could not list channels: %v", err)
	}

	channels := make([]*bdb.LocalChannel, 0, len(channelList.Channels))
	for _, channel := range channelList.Channels {
		channels = append(channels, localChannelFromRpc(channel))
	}

	return channels, nil
}

// GetWalletInfo always asks the node since the block height moves on.
func (client *Client) GetWalletInfo(ctx context.Context) (*node.WalletInfo, error) {
	info, err := client.lightning.GetInfo(client.auth(ctx), &lnrpc.GetInfoRequest{})
	if err != nil {
		return nil, errors.Errorf("Could not get info: %v", err)
	}

	return &node.WalletInfo{
		PublicKey:          bdb.PubKey(info.IdentityPubkey),
		CurrentBlockHeight: info.BlockHeight,
	}, nil
}

func (client *Client) ParsePaymentRequest(ctx context.Context, request string) (*bdb.PaymentRequest, error) {
	payReq, err := client.lightning.DecodePayReq(client.auth(ctx), &lnrpc.PayReqString{
		PayReq: request,
	})
	if err != nil {
		return nil, errors.Errorf("Could not decode payment request: %v", err)
	}

	return paymentRequestFromRpc(payReq)
}
